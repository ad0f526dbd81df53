package ftpclient

import (
	"context"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
)

// Conn is the part of an FTP control connection the client drives. It is
// satisfied by a wrapped *ftp.ServerConn and replaced by fakes in tests.
type Conn interface {
	Login(user, password string) error
	List(path string) ([]*ftp.Entry, error)
	FileSize(path string) (int64, error)
	Retr(path string) (io.ReadCloser, error)
	Quit() error
}

// DialFunc opens a control connection to addr ("host:port").
type DialFunc func(ctx context.Context, addr string) (Conn, error)

// serverConn adapts *ftp.ServerConn, whose Retr returns a concrete response
// type, to Conn.
type serverConn struct {
	*ftp.ServerConn
}

func (s serverConn) Retr(path string) (io.ReadCloser, error) {
	resp, err := s.ServerConn.Retr(path)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// NewDialer returns a DialFunc backed by github.com/jlaffaye/ftp. A zero
// timeout leaves dialing bounded only by ctx.
func NewDialer(timeout time.Duration, disableEPSV bool) DialFunc {
	return func(ctx context.Context, addr string) (Conn, error) {
		opts := []ftp.DialOption{
			ftp.DialWithContext(ctx),
			ftp.DialWithDisabledEPSV(disableEPSV),
		}

		if timeout > 0 {
			opts = append(opts, ftp.DialWithTimeout(timeout))
		}

		sc, err := ftp.Dial(addr, opts...)
		if err != nil {
			return nil, err
		}

		return serverConn{sc}, nil
	}
}
