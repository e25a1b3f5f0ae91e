package remote

import (
	"github.com/bamsammich/rfile/internal/wire"
)

// transaction is one complete exchange on a session. It must be safe to run
// twice: everything it needs is captured before the first attempt.
type transaction func(s *session) error

// transact runs tx on the current session. If that attempt fails for any
// reason, the session is replaced once and tx is retried; a second failure
// is returned as a *TransportError. The caller holds f.mu.
func (f *File) transact(verb string, tx transaction) error {
	err := f.attempt(tx)
	if err == nil {
		return nil
	}

	f.log.Warn("transport fault, reconnecting", "command", verb, "error", err)
	f.stats.AddReconnects(1)
	if f.unsynced && !f.writesLost {
		f.writesLost = true
		f.log.Warn("reconnecting with unsynced writes")
	}
	if rerr := f.reconnect(); rerr != nil {
		f.stats.AddFailures(1)
		return rerr
	}

	if err := f.attempt(tx); err != nil {
		f.stats.AddFailures(1)
		return &TransportError{Command: verb, Err: err}
	}
	return nil
}

func (f *File) attempt(tx transaction) error {
	if f.sess == nil {
		return errNoSession
	}
	f.stats.AddCommands(1)
	return tx(f.sess)
}

// transactLine sends cmd and returns the single response line.
func (f *File) transactLine(cmd wire.Command) (string, error) {
	var resp string
	err := f.transact(cmd.Verb, func(s *session) error {
		if err := s.send(cmd, nil); err != nil {
			return err
		}
		line, err := s.readLine()
		if err != nil {
			return err
		}
		resp = line
		return nil
	})
	return resp, err
}

// transactRead reads len(p) raw bytes starting at offset.
func (f *File) transactRead(offset int64, p []byte) error {
	cmd := wire.Read(offset, int64(len(p)))
	err := f.transact(cmd.Verb, func(s *session) error {
		if err := s.send(cmd, nil); err != nil {
			return err
		}
		return s.readFull(p)
	})
	if err == nil {
		f.stats.AddBytesRead(int64(len(p)))
	}
	return err
}

// transactWrite sends the WRITE header and payload. The server does not
// acknowledge writes; the transaction ends once the bytes are flushed.
func (f *File) transactWrite(offset int64, p []byte) error {
	cmd := wire.Write(offset, int64(len(p)))
	err := f.transact(cmd.Verb, func(s *session) error {
		return s.send(cmd, p)
	})
	if err == nil {
		f.stats.AddBytesWritten(int64(len(p)))
	}
	return err
}

// transactSyncedWrite sends WRITE, its payload and FORCE TRUE as one
// transaction and returns the FORCE response. A retry resends the payload,
// so a session lost after the write cannot drop it.
func (f *File) transactSyncedWrite(offset int64, p []byte) (string, error) {
	cmd := wire.Write(offset, int64(len(p)))
	force := wire.Force()
	var resp string
	err := f.transact(cmd.Verb, func(s *session) error {
		if err := s.send(cmd, p); err != nil {
			return err
		}
		if err := s.send(force, nil); err != nil {
			return err
		}
		line, err := s.readLine()
		if err != nil {
			return err
		}
		resp = line
		return nil
	})
	if err == nil {
		f.stats.AddBytesWritten(int64(len(p)))
	}
	return resp, err
}
