// Package blocking turns would-block outcomes into wait-and-retry loops so
// that the layers above never observe them.
package blocking

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"stream-toolkit/stream"
	uerrors "stream-toolkit/util/errors"
)

// Stream guarantees progress: Read and Write return at least one byte, or
// a terminal error, and never a would-block error.
type Stream struct {
	*stream.Delegate

	cfg     Config
	log     *logrus.Entry
	backoff Backoff
}

var _ stream.Stream = (*Stream)(nil)

func New(s stream.Stream, cfg Config) *Stream {
	cfg = sanitizeConfig(cfg)
	return &Stream{
		Delegate: stream.NewDelegate(s, true),
		cfg:      cfg,
		log:      cfg.Logger.WithField("layer", "blocking"),
	}
}

func (s *Stream) Read(p []byte) (int, error) {
	for {
		n, err := s.Delegate.Read(p)
		if n > 0 {
			s.backoff.Reset()
			return n, nil
		}
		if retry, rerr := s.retry("read", err); !retry {
			return n, rerr
		}
	}
}

func (s *Stream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return s.Delegate.Write(p)
	}
	for {
		n, err := s.Delegate.Write(p)
		if n > 0 {
			s.backoff.Reset()
			return n, nil
		}
		if retry, rerr := s.retry("write", err); !retry {
			return n, rerr
		}
	}
}

func (s *Stream) Flush() error {
	for {
		err := s.Delegate.Flush()
		if retry, rerr := s.retry("flush", err); !retry {
			return rerr
		}
	}
}

func (s *Stream) Close() error {
	for {
		err := s.Delegate.Close()
		if retry, rerr := s.retry("close", err); !retry {
			return rerr
		}
	}
}

func (s *Stream) Dup() (stream.Stream, error) {
	inner, err := s.DupInner()
	if err != nil {
		return nil, err
	}
	return New(inner, s.cfg), nil
}

// retry decides whether op should be attempted again after err, waiting
// for readiness when the outcome was a would-block.
func (s *Stream) retry(op string, err error) (bool, error) {
	switch stream.Classify(err) {
	case stream.OutcomeWouldBlockRead:
		return s.wait(op, stream.EventReadable)
	case stream.OutcomeWouldBlockWrite:
		return s.wait(op, stream.EventWritable)
	case stream.OutcomeInterrupted:
		s.log.WithField("op", op).Trace("Retrying interrupted operation")
		return true, nil
	default:
		return false, err
	}
}

func (s *Stream) wait(op string, events stream.Events) (bool, error) {
	if err := s.CheckOpen(); err != nil {
		return false, err
	}
	fields := logrus.Fields{"op": op, "events": events.String()}
	s.log.WithFields(fields).Debug("Waiting for readiness")
	_, err := s.Inner().Wait(events, s.cfg.WaitTimeout)
	switch {
	case err == nil:
		return true, nil
	case uerrors.IsDeadlineError(err):
		// A close from another owner ends the loop here.
		return s.stillOpen()
	case errors.Is(err, stream.ErrNotSupported):
		s.log.WithFields(fields).Tracef("Backing off for %s", s.backoff.Duration())
		s.backoff.Wait()
		return s.stillOpen()
	case stream.IsInterrupted(err):
		return true, nil
	default:
		return false, err
	}
}

func (s *Stream) stillOpen() (bool, error) {
	if err := s.CheckOpen(); err != nil {
		return false, err
	}
	return true, nil
}

// WaitTimeout returns the bound used for each wait between retries.
func (s *Stream) WaitTimeout() time.Duration {
	return s.cfg.WaitTimeout
}
