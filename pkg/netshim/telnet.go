package netshim

// Telnet protocol bytes the shims understand. Everything else inside an
// option frame is passed through opaquely.
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	GA   byte = 249
	SE   byte = 240
	ECHO byte = 1
)

// EchoOn asks the client to stop local echo, used while a password is
// being typed.
func EchoOn() []byte { return []byte{IAC, WILL, ECHO} }

// EchoOff restores local echo after login.
func EchoOff() []byte { return []byte{IAC, WONT, ECHO} }

// GoAhead terminates a prompt that carries no line ending.
func GoAhead() []byte { return []byte{IAC, GA} }

// Frame is one unit cut from a raw byte stream: a complete text line
// (without its line ending), a prompt flushed by a go-ahead, or an
// opaque telnet sequence.
type Frame struct {
	Telnet bool
	Prompt bool
	Data   []byte
}

// Framer splits a telnet byte stream into text lines and option frames.
// Text is split on LF with CR dropped. IAC IAC collapses to a literal
// 0xFF data byte. IAC GA flushes the pending partial line as a Prompt
// frame and is itself consumed. Negotiations (IAC WILL/WONT/DO/DONT
// opt), other lone commands and subnegotiations (IAC SB ... IAC SE)
// come out as Telnet frames holding the raw bytes. Partial lines and
// frames stay buffered until the next Feed.
type Framer struct {
	text  []byte
	frame []byte
	inSB  bool
	sbIAC bool
}

// Feed consumes a chunk of raw bytes and returns the frames it
// completed.
func (f *Framer) Feed(data []byte) []Frame {
	var out []Frame
	for _, b := range data {
		if len(f.frame) > 0 {
			out = f.feedFrame(out, b)
			continue
		}
		switch b {
		case IAC:
			f.frame = append(f.frame, b)
		case '\r':
		case '\n':
			out = append(out, Frame{Data: f.takeText()})
		default:
			f.text = append(f.text, b)
		}
	}
	return out
}

// Tail returns a copy of any buffered partial line and clears it. The
// mud shim flushes it as a plain line on disconnect.
func (f *Framer) Tail() []byte {
	if len(f.text) == 0 {
		return nil
	}
	t := append([]byte(nil), f.text...)
	f.text = f.text[:0]
	return t
}

func (f *Framer) feedFrame(out []Frame, b byte) []Frame {
	if f.inSB {
		f.frame = append(f.frame, b)
		switch {
		case f.sbIAC && b == SE:
			out = append(out, Frame{Telnet: true, Data: f.takeFrame()})
			f.inSB = false
			f.sbIAC = false
		case f.sbIAC:
			// IAC IAC is escaped data inside a subnegotiation.
			f.sbIAC = false
		case b == IAC:
			f.sbIAC = true
		}
		return out
	}
	if len(f.frame) == 1 {
		switch b {
		case IAC:
			// Escaped literal 0xFF in the text stream.
			f.text = append(f.text, IAC)
			f.frame = f.frame[:0]
		case SB:
			f.frame = append(f.frame, b)
			f.inSB = true
			f.sbIAC = false
		case WILL, WONT, DO, DONT:
			f.frame = append(f.frame, b)
		case GA:
			f.frame = f.frame[:0]
			out = append(out, Frame{Prompt: true, Data: f.takeText()})
		default:
			f.frame = append(f.frame, b)
			out = append(out, Frame{Telnet: true, Data: f.takeFrame()})
		}
		return out
	}
	// IAC + WILL/WONT/DO/DONT already buffered, b is the option byte.
	f.frame = append(f.frame, b)
	out = append(out, Frame{Telnet: true, Data: f.takeFrame()})
	return out
}

func (f *Framer) takeText() []byte {
	line := append([]byte(nil), f.text...)
	f.text = f.text[:0]
	return line
}

func (f *Framer) takeFrame() []byte {
	fr := append([]byte(nil), f.frame...)
	f.frame = f.frame[:0]
	return fr
}
