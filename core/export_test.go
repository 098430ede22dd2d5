package core

// TransferCounts exposes the transfer descriptor counters to tests.
func (d *Driver) TransferCounts() (num, txCnt, rxCnt uint32) {
	return d.xfer.num, d.xfer.txCnt, d.xfer.rxCnt
}

// Fill exposes the default transmit value to tests.
func (d *Driver) Fill() uint16 {
	return d.fill
}

var BytesForWidth = bytesForWidth
