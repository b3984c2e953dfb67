// File: fake/transport.go
// Scripted byte transport for write-path tests.
// License: Apache-2.0

package fake

import "github.com/jw2013/fhem-modules/api"

// Transport is a scripted api.Transport. Successive Write calls accept the
// byte counts listed in Accepts (negative or missing entries accept
// everything offered) or fail with the parallel entry in Errs. Accepted
// bytes accumulate in Written.
type Transport struct {
	Accepts []int
	Errs    []error
	Written []byte

	ReadData []byte // served by Read, consumed as it is read
	ReadErr  error  // returned once ReadData is exhausted

	calls int
}

// Write accepts bytes according to the script. A scripted error accepts
// nothing.
func (t *Transport) Write(p []byte) (int, error) {
	i := t.calls
	t.calls++
	if i < len(t.Errs) && t.Errs[i] != nil {
		return 0, t.Errs[i]
	}
	n := len(p)
	if i < len(t.Accepts) && t.Accepts[i] >= 0 && t.Accepts[i] < n {
		n = t.Accepts[i]
	}
	t.Written = append(t.Written, p[:n]...)
	return n, nil
}

// Read serves bytes from ReadData; once empty it returns ReadErr, or
// api.ErrWouldBlock when no error was scripted.
func (t *Transport) Read(p []byte) (int, error) {
	if len(t.ReadData) == 0 {
		if t.ReadErr != nil {
			return 0, t.ReadErr
		}
		return 0, api.ErrWouldBlock
	}
	n := copy(p, t.ReadData)
	t.ReadData = t.ReadData[n:]
	return n, nil
}

// WriteCalls returns how many Write calls were made.
func (t *Transport) WriteCalls() int { return t.calls }
