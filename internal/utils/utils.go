package utils

import (
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/miekg/dns"
)

// ExtractTXT returns the text of every TXT record in the answer section,
// joining multi-string records.
func ExtractTXT(msg *dns.Msg) []string {
	var texts []string
	for _, rr := range msg.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			texts = append(texts, strings.Join(txt.Txt, ""))
		}
	}
	return texts
}

func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	// Get IP from RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// HeaderNames lists the header keys of a request in sorted order.
func HeaderNames(headers http.Header) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SplitCSV splits a comma separated header value, trimming blanks.
// Commas cannot be escaped.
func SplitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
