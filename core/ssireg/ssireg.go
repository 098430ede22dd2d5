// Package ssireg describes the register map of the SiWx917 SSI controllers
// (Synopsys DesignWare APB SSI with 32-bit frame support).
package ssireg

// Register bank base addresses
const (
	BaseSSI0     = 0x4402_0000 // SSI master (HP domain)
	BaseSSISlave = 0x4502_0000 // SSI slave
	BaseSSI2     = 0x2404_0000 // ULP SSI master
)

// Register offsets
const (
	CTRLR0  = 0x00
	CTRLR1  = 0x04
	SSIENR  = 0x08
	MWCR    = 0x0C
	SER     = 0x10
	BAUDR   = 0x14
	TXFTLR  = 0x18
	RXFTLR  = 0x1C
	TXFLR   = 0x20
	RXFLR   = 0x24
	SR      = 0x28
	IMR     = 0x2C
	ISR     = 0x30
	RISR    = 0x34
	TXOICR  = 0x38
	RXOICR  = 0x3C
	RXUICR  = 0x40
	MSTICR  = 0x44
	ICR     = 0x48
	DMACR   = 0x4C
	DMATDLR = 0x50
	DMARDLR = 0x54
	IDR     = 0x58
	VERSION = 0x5C
	DR      = 0x60

	// Size is the span of the register window in bytes
	Size = 0x64
)

// CTRLR0 fields: position and unshifted mask
const (
	CTRLR0_DFS_Pos     = 0
	CTRLR0_DFS_Msk     = 0xF
	CTRLR0_FRF_Pos     = 4
	CTRLR0_FRF_Msk     = 0x3
	CTRLR0_SCPH_Pos    = 6
	CTRLR0_SCPOL_Pos   = 7
	CTRLR0_TMOD_Pos    = 8
	CTRLR0_TMOD_Msk    = 0x3
	CTRLR0_SLV_OE_Pos  = 10
	CTRLR0_SRL_Pos     = 11
	CTRLR0_CFS_Pos     = 12
	CTRLR0_CFS_Msk     = 0xF
	CTRLR0_DFS_32_Pos  = 16
	CTRLR0_DFS_32_Msk  = 0x1F
	CTRLR0_SPI_FRF_Pos = 21
	CTRLR0_SPI_FRF_Msk = 0x3
)

// CTRLR1 fields
const (
	CTRLR1_NDF_Pos = 0
	CTRLR1_NDF_Msk = 0xFFFF
)

// BAUDR fields
const (
	BAUDR_SCKDV_Pos = 0
	BAUDR_SCKDV_Msk = 0xFFFF
)

// Transfer modes (CTRLR0.TMOD)
const (
	TransmitAndReceive = 0
	TransmitOnly       = 1
	ReceiveOnly        = 2
	EEPROMRead         = 3
)

// Frame formats (CTRLR0.FRF)
const (
	FrameMotorola  = 0
	FrameTexasSSP  = 1
	FrameMicrowire = 2
)

// SPI frame formats (CTRLR0.SPI_FRF)
const (
	SPIStandard = 0
	SPIDual     = 1
	SPIQuad     = 2
)

// SSIENR values
const (
	Disable = 0
	Enable  = 1
)

// SR bits
const (
	SR_BUSY = 1 << 0 // Transfer in progress
	SR_TFNF = 1 << 1 // Transmit FIFO not full
	SR_TFE  = 1 << 2 // Transmit FIFO empty
	SR_RFNE = 1 << 3 // Receive FIFO not empty
	SR_RFF  = 1 << 4 // Receive FIFO full
	SR_TXE  = 1 << 5 // Transmission error (slave)
	SR_DCOL = 1 << 6 // Data collision (master)
)

// Interrupt bits, shared by IMR, ISR and RISR
const (
	TXEI = 1 << 0 // Transmit FIFO empty
	TXOI = 1 << 1 // Transmit FIFO overflow
	RXUI = 1 << 2 // Receive FIFO underflow
	RXOI = 1 << 3 // Receive FIFO overflow
	RXFI = 1 << 4 // Receive FIFO full
	MSTI = 1 << 5 // Multi-master contention

	// OverrunMask selects the error class handled ahead of data pumping
	OverrunMask = TXOI | RXOI | RXUI
)

// DMACR bits
const (
	DMACR_RDMAE = 1 << 0
	DMACR_TDMAE = 1 << 1
)

// FIFODepth is the depth of the transmit and receive FIFOs in frames.
const FIFODepth = 16
