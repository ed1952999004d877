package modbus

import (
	"github.com/embeddedvos/vos/mberr"
	"github.com/embeddedvos/vos/internal/logging"
	"github.com/embeddedvos/vos/ringbuf"
)

type slaveState int

const (
	slaveAddr slaveState = iota
	slaveFunc
	slaveInfo
	slaveData
	slaveCRC
)

// SlaveHandler services one request against a registered register range.
// For a read it fills data[:regNum]; for a write it consumes data[:regNum]
// (already decoded big-endian from the wire). A non-None return encodes
// an exception response instead of a normal one.
type SlaveHandler func(funcCode byte, reg uint16, regNum uint16, data []uint16) mberr.Code

// SlaveWork describes a half-open register range and the handler that
// services both reads and writes inside it.
type SlaveWork struct {
	Start, End uint16
	Handler    SlaveHandler
}

// rxBufScale mirrors RX_BUFF_SIZE = MODBUS_FRAME_BYTES_MAX * 2 in the
// original source: enough room for a full frame plus a full frame of
// garbage ahead of it before backpressure kicks in.
const rxBufScale = 2

// SlaveConfig parameterizes a Slave.
type SlaveConfig struct {
	Address   byte
	WorkTable []SlaveWork
	Logger    *logging.Logger
}

// Slave is one RTU slave endpoint: a fixed address, a caller-owned work
// table, and the receive parser state needed to reassemble requests
// across partial reads.
type Slave struct {
	addr   byte
	work   []SlaveWork
	logger *logging.Logger

	ring *ringbuf.Ring
	win  *window

	state   slaveState
	pduIn   int
	pduLen  int
	calcCRC uint16
	reqAddr byte
	reqFunc byte

	pduBuf    [FrameBytesMax]byte
	dataInOut [MaxReadRegs]uint16
}

// NewSlave builds a Slave bound to a fixed address and work table.
func NewSlave(cfg SlaveConfig) *Slave {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	ring := ringbuf.New(ringbuf.Config{Capacity: FrameBytesMax * rxBufScale})
	s := &Slave{
		addr:   cfg.Address,
		work:   cfg.WorkTable,
		logger: logger,
		ring:   ring,
	}
	s.win = newWindow(ring)
	return s
}

func miniHeaderLen(f byte) int {
	if f == FuncReadHoldingRegisters {
		return readHeaderLen
	}
	return writeHeaderLen
}

// externLen computes the announced write payload length, rejecting it
// (returning 0) if the byte-count field disagrees with the register
// count, the register count exceeds MaxWriteRegs, or the resulting frame
// would overrun pduBuf — matching get_pdu_extern_len. The original only
// got away with a bare byte-count-vs-cap check because pdu_in/pdu_len
// were uint8_t and wrapped instead of overflowing; ported to int, the
// register-count and total-frame-size checks both have to be explicit.
func (s *Slave) externLen() int {
	regNum := uint16(s.pduBuf[2])<<8 | uint16(s.pduBuf[3])
	declared := int(s.pduBuf[4])
	if declared != int(regNum)*2 || !validRegCount(regNum, FuncWriteMultipleRegisters) {
		return 0
	}
	if writeHeaderLen+declared+crcBytes > FrameBytesMax {
		return 0
	}
	return declared
}

func (s *Slave) rebase() {
	s.state = slaveAddr
	s.win.rebase()
}

// receiveParse drains every buffered byte through the state machine,
// returning true the moment a CRC-valid frame has been fully collected.
func (s *Slave) receiveParse() bool {
	for s.win.remaining() > 0 {
		c := s.win.next()
		switch s.state {
		case slaveAddr:
			if c == s.addr {
				s.reqAddr = c
				s.state = slaveFunc
				s.calcCRC = crcUpdate(crcSeed, c)
			} else {
				s.rebase()
			}
		case slaveFunc:
			if isValidFunc(c) {
				s.reqFunc = c
				s.pduIn = 0
				s.pduLen = miniHeaderLen(c)
				s.state = slaveInfo
				s.calcCRC = crcUpdate(s.calcCRC, c)
			} else {
				s.rebase()
			}
		case slaveInfo:
			s.pduBuf[s.pduIn] = c
			s.pduIn++
			s.calcCRC = crcUpdate(s.calcCRC, c)
			if s.pduIn >= s.pduLen {
				if s.reqFunc == FuncReadHoldingRegisters {
					s.pduLen += crcBytes
					s.state = slaveCRC
				} else if ext := s.externLen(); ext == 0 {
					s.rebase()
				} else {
					s.pduLen += ext
					s.state = slaveData
				}
			}
		case slaveData:
			s.pduBuf[s.pduIn] = c
			s.pduIn++
			s.calcCRC = crcUpdate(s.calcCRC, c)
			if s.pduIn >= s.pduLen {
				s.pduLen += crcBytes
				s.state = slaveCRC
			}
		case slaveCRC:
			s.pduBuf[s.pduIn] = c
			s.pduIn++
			if s.pduIn >= s.pduLen {
				recv := uint16(s.pduBuf[s.pduIn-1])<<8 | uint16(s.pduBuf[s.pduIn-2])
				if s.calcCRC == recv {
					s.win.flush()
					s.state = slaveAddr
					return true
				}
				s.rebase()
			}
		}
	}
	return false
}

func (s *Slave) regHeader() (reg, regNum uint16) {
	reg = uint16(s.pduBuf[0])<<8 | uint16(s.pduBuf[1])
	regNum = uint16(s.pduBuf[2])<<8 | uint16(s.pduBuf[3])
	return
}

// rtuHandle resolves the work entry whose range fully contains the
// request and dispatches to it, matching _rtu_handle's linear scan and
// its MODBUS_RESP_ERR_BUSY default when nothing matches.
func (s *Slave) rtuHandle() mberr.Code {
	reg, regNum := s.regHeader()
	for _, w := range s.work {
		if w.Handler == nil {
			continue
		}
		if checkRegRange(reg, regNum, w.Start, w.End, s.reqFunc) {
			return w.Handler(s.reqFunc, reg, regNum, s.dataInOut[:regNum])
		}
	}
	return mberr.Busy
}

func (s *Slave) packReadResponse() []byte {
	_, regNum := s.regHeader()
	buf := make([]byte, 0, FrameBytesMax)
	buf = append(buf, s.reqAddr)

	code := s.rtuHandle()
	if code == mberr.None {
		buf = append(buf, FuncReadHoldingRegisters, byte(regNum*2))
		for _, v := range s.dataInOut[:regNum] {
			buf = append(buf, byte(v>>8), byte(v))
		}
	} else {
		buf = append(buf, s.reqFunc|0x80, byte(mberr.Clamp(code)))
	}

	crc := crcBytesOf(crcSeed, buf)
	return append(buf, byte(crc), byte(crc>>8))
}

func (s *Slave) decodeWritePayload() {
	_, regNum := s.regHeader()
	payload := s.pduBuf[writeHeaderLen:]
	for i, j := 0, 0; j < int(regNum); i, j = i+2, j+1 {
		s.dataInOut[j] = uint16(payload[i])<<8 | uint16(payload[i+1])
	}
}

func (s *Slave) packWriteResponse() []byte {
	reg, regNum := s.regHeader()
	buf := make([]byte, 0, FrameBytesMax)
	buf = append(buf, s.reqAddr)

	code := s.rtuHandle()
	if code == mberr.None {
		buf = append(buf, FuncWriteMultipleRegisters,
			byte(reg>>8), byte(reg), byte(regNum>>8), byte(regNum))
	} else {
		buf = append(buf, s.reqFunc|0x80, byte(mberr.Clamp(code)))
	}

	crc := crcBytesOf(crcSeed, buf)
	return append(buf, byte(crc), byte(crc>>8))
}

func (s *Slave) dispatch() []byte {
	switch s.reqFunc {
	case FuncReadHoldingRegisters:
		return s.packReadResponse()
	case FuncWriteMultipleRegisters:
		s.decodeWritePayload()
		return s.packWriteResponse()
	default:
		return nil
	}
}

// Poll performs one non-blocking iteration: read whatever bytes are
// available, feed the parser (including bytes buffered by an earlier
// Poll), and write a response if a complete frame was assembled. It never
// blocks and writes nothing if no complete frame or no response is
// produced.
func (s *Slave) Poll(t Transport) error {
	buf := make([]byte, FrameBytesMax)
	n, err := t.Read(buf)
	if err != nil {
		return err
	}
	if n > 0 {
		if added := s.ring.Add(buf[:n]); added != n {
			s.logger.Warn("slave receive buffer overrun, dropping bytes", "wanted", n, "added", added)
			return nil
		}
	}
	if !s.receiveParse() {
		return nil
	}

	resp := s.dispatch()
	if len(resp) == 0 {
		return nil
	}
	_, err = t.Write(resp)
	return err
}
