// Package logging builds the process logger. The rest of the code only sees a
// *log.Logger and never knows which sink is behind it.
package logging

import (
	"fmt"
	"io"
	"log"
	"log/syslog"
	"os"
)

const (
	SinkStdout = "stdout"
	SinkSyslog = "syslog"
	SinkDevLog = "devlog"
)

// New returns a logger writing to the named sink. The returned closer
// releases the sink and must be called on shutdown.
func New(sink, syslogAddress, tag string) (*log.Logger, io.Closer, error) {
	switch sink {
	case "", SinkStdout:
		return log.New(os.Stdout, "", log.LstdFlags|log.Lmsgprefix), nopCloser{}, nil
	case SinkSyslog:
		w, err := syslog.Dial("udp", syslogAddress, syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
		if err != nil {
			return nil, nil, fmt.Errorf("dial syslog %s: %w", syslogAddress, err)
		}
		return log.New(w, "", log.Lmsgprefix), w, nil
	case SinkDevLog:
		w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
		if err != nil {
			return nil, nil, fmt.Errorf("open /dev/log: %w", err)
		}
		return log.New(w, "", log.Lmsgprefix), w, nil
	default:
		return nil, nil, fmt.Errorf("unknown log sink %q", sink)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
