package core

import "errors"

// Driver errors. Each maps to a CMSIS-Driver status code through Code.
var (
	ErrDriver      = errors.New("spi: driver error")
	ErrBusy        = errors.New("spi: busy")
	ErrTimeout     = errors.New("spi: timeout")
	ErrUnsupported = errors.New("spi: operation not supported")
	ErrParameter   = errors.New("spi: invalid parameter")
	ErrMode        = errors.New("spi: unsupported mode")
	ErrSSMode      = errors.New("spi: unsupported slave select mode")
	ErrFrameFormat = errors.New("spi: unsupported frame format")
	ErrDataBits    = errors.New("spi: unsupported data bits")
	ErrBitOrder    = errors.New("spi: unsupported bit order")
)

// CMSIS-Driver status codes
const (
	StatusOK          = 0
	StatusError       = -1
	StatusBusy        = -2
	StatusTimeout     = -3
	StatusUnsupported = -4
	StatusParameter   = -5
	StatusMode        = -6
	StatusSSMode      = -7
	StatusFrameFormat = -8
	StatusDataBits    = -9
	StatusBitOrder    = -10
)

var statusCodes = []struct {
	err  error
	code int32
}{
	{ErrBusy, StatusBusy},
	{ErrTimeout, StatusTimeout},
	{ErrUnsupported, StatusUnsupported},
	{ErrParameter, StatusParameter},
	{ErrMode, StatusMode},
	{ErrSSMode, StatusSSMode},
	{ErrFrameFormat, StatusFrameFormat},
	{ErrDataBits, StatusDataBits},
	{ErrBitOrder, StatusBitOrder},
	{ErrDriver, StatusError},
}

// Code returns the CMSIS status code for err. Wrapped driver errors are
// recognised; any other non-nil error maps to StatusError.
func Code(err error) int32 {
	if err == nil {
		return StatusOK
	}
	for _, s := range statusCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return StatusError
}

// FromCode is the inverse of Code. Unknown negative codes map to ErrDriver.
func FromCode(code int32) error {
	if code == StatusOK {
		return nil
	}
	for _, s := range statusCodes {
		if s.code == code {
			return s.err
		}
	}
	return ErrDriver
}
