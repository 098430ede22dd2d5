package core

// Control word layout, following the CMSIS-Driver SPI encoding so that
// control values are interchangeable with C callers.
const (
	ControlPos = 0
	ControlMsk = 0xFF << ControlPos

	// Mode field
	ModeInactive      = 0x00
	ModeMaster        = 0x01
	ModeSlave         = 0x02
	ModeMasterSimplex = 0x03
	ModeSlaveSimplex  = 0x04

	// Miscellaneous opcodes
	SetBusSpeed       = 0x10
	GetBusSpeed       = 0x11
	SetDefaultTxValue = 0x12
	ControlSS         = 0x13
	AbortTransfer     = 0x14
)

// Frame format
const (
	FrameFormatPos = 8
	FrameFormatMsk = 7 << FrameFormatPos

	CPOL0CPHA0 = 0 << FrameFormatPos
	CPOL0CPHA1 = 1 << FrameFormatPos
	CPOL1CPHA0 = 2 << FrameFormatPos
	CPOL1CPHA1 = 3 << FrameFormatPos
	TISSI      = 4 << FrameFormatPos
	Microwire  = 5 << FrameFormatPos
)

// Data bits
const (
	DataBitsPos = 12
	DataBitsMsk = 0x3F << DataBitsPos
)

// DataBits encodes a frame width for the control word.
func DataBits(n uint32) uint32 {
	return (n << DataBitsPos) & DataBitsMsk
}

// Bit order
const (
	BitOrderPos = 18
	BitOrderMsk = 1 << BitOrderPos

	MSBLSB = 0 << BitOrderPos
	LSBMSB = 1 << BitOrderPos
)

// Slave select when master
const (
	SSMasterModePos = 19
	SSMasterModeMsk = 3 << SSMasterModePos

	SSMasterUnused   = 0 << SSMasterModePos
	SSMasterSW       = 1 << SSMasterModePos
	SSMasterHWOutput = 2 << SSMasterModePos
	SSMasterHWInput  = 3 << SSMasterModePos
)

// Slave select when slave
const (
	SSSlaveModePos = 21
	SSSlaveModeMsk = 1 << SSSlaveModePos

	SSSlaveHW = 0 << SSSlaveModePos
	SSSlaveSW = 1 << SSSlaveModePos
)

// CONTROL_SS arguments
const (
	SSInactive = 0
	SSActive   = 1
)

// FrameFormatForMode maps an SPI mode number (0-3) to its frame format.
func FrameFormatForMode(mode uint8) uint32 {
	switch mode & 3 {
	case 1:
		return CPOL0CPHA1
	case 2:
		return CPOL1CPHA0
	case 3:
		return CPOL1CPHA1
	default:
		return CPOL0CPHA0
	}
}
