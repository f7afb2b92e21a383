//go:build !linux && !darwin

package eventloop

import (
	"errors"
)

// fastPoller is unavailable on this platform, New fails with
// errors.ErrUnsupported.
type fastPoller struct{}

func (p *fastPoller) Init() error { return errors.ErrUnsupported }
func (p *fastPoller) Close() error { return nil }
func (p *fastPoller) RegisterFD(int, IOEvents, IOCallback) error { return errors.ErrUnsupported }
func (p *fastPoller) UnregisterFD(int) error { return ErrFDNotRegistered }
func (p *fastPoller) ModifyFD(int, IOEvents) error { return ErrFDNotRegistered }
func (p *fastPoller) PollIO(int) (int, error) { return 0, errors.ErrUnsupported }

func createWakeFd() (int, int, error) { return -1, -1, errors.ErrUnsupported }
func closeFD(int) error { return errors.ErrUnsupported }
func readFD(int, []byte) (int, error) { return 0, errors.ErrUnsupported }
func writeFD(int, []byte) (int, error) { return 0, errors.ErrUnsupported }
