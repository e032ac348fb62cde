package telnet

import (
	"bytes"
	"testing"
)

func TestFilterPlainText(t *testing.T) {
	var reply bytes.Buffer
	n := NewNegotiator(&reply)

	text, saw := n.Filter([]byte("look north"))
	if saw {
		t.Error("plain text reported as telnet command")
	}
	if string(text) != "look north" {
		t.Errorf("text = %q, want %q", text, "look north")
	}
	if reply.Len() != 0 {
		t.Errorf("unexpected reply bytes: %v", reply.Bytes())
	}
}

func TestFilterMirrorsNegotiations(t *testing.T) {
	tests := []struct {
		cmd  byte
		want byte
	}{
		{WILL, DO},
		{WONT, DONT},
		{DO, WILL},
		{DONT, WONT},
	}
	for _, tt := range tests {
		var reply bytes.Buffer
		n := NewNegotiator(&reply)

		text, saw := n.Filter([]byte{IAC, tt.cmd, OptEcho})
		if !saw {
			t.Errorf("cmd %d: telnet command not reported", tt.cmd)
		}
		if len(text) != 0 {
			t.Errorf("cmd %d: leftover text %q", tt.cmd, text)
		}
		want := []byte{IAC, tt.want, OptEcho}
		if !bytes.Equal(reply.Bytes(), want) {
			t.Errorf("cmd %d: reply = %v, want %v", tt.cmd, reply.Bytes(), want)
		}
	}
}

func TestFilterEmbeddedSequence(t *testing.T) {
	var reply bytes.Buffer
	n := NewNegotiator(&reply)

	buf := append([]byte("sa"), IAC, WILL, OptSuppressGA)
	buf = append(buf, []byte("y hi")...)
	text, saw := n.Filter(buf)
	if !saw {
		t.Error("embedded sequence not reported")
	}
	if string(text) != "say hi" {
		t.Errorf("text = %q, want %q", text, "say hi")
	}
}

func TestFilterTwoByteCommand(t *testing.T) {
	var reply bytes.Buffer
	n := NewNegotiator(&reply)

	text, saw := n.Filter([]byte{IAC, NOP, 'h', 'i'})
	if !saw {
		t.Error("NOP not reported as command")
	}
	if string(text) != "hi" {
		t.Errorf("text = %q, want %q", text, "hi")
	}
	if reply.Len() != 0 {
		t.Error("NOP should not be acknowledged")
	}
}

func TestFilterTruncatedSequences(t *testing.T) {
	// Truncation at end of buffer must consume minimally, not error.
	tests := []struct {
		name string
		in   []byte
	}{
		{"lone IAC", []byte{'o', 'k', IAC}},
		{"IAC WILL no option", []byte{'o', 'k', IAC, WILL}},
		{"unterminated SB", []byte{'o', 'k', IAC, SB, OptNAWS, 0, 80}},
	}
	for _, tt := range tests {
		var reply bytes.Buffer
		n := NewNegotiator(&reply)
		text, saw := n.Filter(tt.in)
		if !saw {
			t.Errorf("%s: command not reported", tt.name)
		}
		if string(text) != "ok" {
			t.Errorf("%s: text = %q, want %q", tt.name, text, "ok")
		}
	}
}

func TestFilterNAWS(t *testing.T) {
	var reply bytes.Buffer
	n := NewNegotiator(&reply)

	var gotW, gotH int
	n.OnResize = func(w, h int) { gotW, gotH = w, h }

	buf := []byte{IAC, SB, OptNAWS, 0, 120, 0, 40, IAC, SE}
	text, saw := n.Filter(buf)
	if !saw || len(text) != 0 {
		t.Errorf("NAWS block mishandled: saw=%v text=%q", saw, text)
	}
	if gotW != 120 || gotH != 40 {
		t.Errorf("resize = %dx%d, want 120x40", gotW, gotH)
	}
}

func TestFilterNilWriter(t *testing.T) {
	n := NewNegotiator(nil)
	text, saw := n.Filter([]byte{IAC, DO, OptEcho, 'x'})
	if !saw || string(text) != "x" {
		t.Errorf("nil-writer filter: saw=%v text=%q", saw, text)
	}
}
