package can

// state is the ParseEngine's internal position in one frame.
type state int

const (
	stateHead state = iota
	stateHeader
	stateDataOrCRC
	stateCRC
)

// ResultKind distinguishes a successfully parsed frame from a CRC
// failure recovered by resynchronising on the next HEAD byte.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultMessage
	ResultCrcError
)

// Result is what Parser.Feed returns once a frame (or a CRC failure)
// has been fully consumed.
type Result struct {
	Kind  ResultKind
	Frame Frame
}

// Parser is a byte-fed streaming state machine that recovers frames
// from an arbitrary byte stream, with resynchronisation after a bad
// CRC or a truncated frame. It retains no buffer between outer Feed
// calls beyond the in-progress frame, so it is restartable.
type Parser struct {
	st        state
	buf       []byte // header + body bytes accumulated so far, excluding HEAD and CRC
	dataField bool
	want      int // total body bytes (header+data) expected before CRC
}

// Feed consumes one byte from the stream. It returns a Result with
// Kind != ResultNone whenever a frame (or a CRC failure) completes on
// this byte.
func (p *Parser) Feed(b byte) Result {
	switch p.st {
	case stateHead:
		if b == Head {
			p.buf = p.buf[:0]
			p.st = stateHeader
		}
		return Result{}

	case stateHeader:
		p.buf = append(p.buf, b)
		if len(p.buf) < 3 {
			return Result{}
		}
		p.dataField = p.buf[0]&(1<<5) != 0
		if p.dataField {
			p.want = 3 + 9
		} else {
			p.want = 3 + 1
		}
		p.st = stateDataOrCRC
		return Result{}

	case stateDataOrCRC:
		p.buf = append(p.buf, b)
		if len(p.buf) < p.want {
			return Result{}
		}
		p.st = stateCRC
		return Result{}

	case stateCRC:
		f := frameFromBody(p.buf, p.dataField, b)
		p.st = stateHead
		p.buf = p.buf[:0]
		if f.Valid() {
			return Result{Kind: ResultMessage, Frame: f}
		}
		return Result{Kind: ResultCrcError, Frame: f}
	}
	return Result{}
}

// frameFromBody reconstructs a Frame from the accumulated header+body
// bytes (as seen between HEAD and CRC) and the trailing CRC byte.
func frameFromBody(buf []byte, dataField bool, crc byte) Frame {
	f := Frame{HasData: dataField, Header0: buf[0], Header1: buf[1], Type: buf[2], CRC: crc}
	if dataField {
		f.FrameID = buf[3]
		copy(f.Data[:], buf[4:12])
	} else {
		f.Reserved = buf[3]
	}
	return f
}

// Reset returns the parser to its initial HEAD state, discarding any
// in-progress frame.
func (p *Parser) Reset() {
	p.st = stateHead
	p.buf = p.buf[:0]
}
