// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestParseIRBStream(t *testing.T) {
	c := qt.New(t)

	var blocks []irbBlock
	blocks = setIRBBlock(blocks, photoshopIPTCBlockID, "", []byte{1, 2, 3})
	blocks = setIRBBlock(blocks, photoshopXMPBlockID, "", []byte("<?xpacket begin=?>"))

	encoded := encodeIRBStream(blocks)
	parsed := parseIRBStream(encoded)

	c.Assert(parsed, qt.HasLen, 2)
	c.Assert(parsed[0].ID, qt.Equals, photoshopIPTCBlockID)
	c.Assert(parsed[0].Data, qt.DeepEquals, []byte{1, 2, 3})
	c.Assert(parsed[1].ID, qt.Equals, photoshopXMPBlockID)
	c.Assert(parsed[1].Data, qt.DeepEquals, []byte("<?xpacket begin=?>"))
}

func TestParseIRBStreamOddLengthPadding(t *testing.T) {
	c := qt.New(t)

	var blocks []irbBlock
	blocks = setIRBBlock(blocks, photoshopIPTCBlockID, "", []byte{1, 2, 3}) // odd-length data
	encoded := encodeIRBStream(blocks)

	c.Assert(len(encoded)%2, qt.Equals, 0)

	parsed := parseIRBStream(encoded)
	c.Assert(parsed, qt.HasLen, 1)
	c.Assert(parsed[0].Data, qt.DeepEquals, []byte{1, 2, 3})
}

func TestSetIRBBlockRemovesOnNilData(t *testing.T) {
	c := qt.New(t)

	var blocks []irbBlock
	blocks = setIRBBlock(blocks, photoshopIPTCBlockID, "", []byte{1})
	blocks = setIRBBlock(blocks, photoshopXMPBlockID, "", []byte{2})
	blocks = setIRBBlock(blocks, photoshopIPTCBlockID, "", nil)

	c.Assert(blocks, qt.HasLen, 1)
	c.Assert(blocks[0].ID, qt.Equals, photoshopXMPBlockID)
}

func TestParseIRBStreamStopsAtGarbage(t *testing.T) {
	c := qt.New(t)

	blocks := parseIRBStream([]byte("not an irb stream"))
	c.Assert(blocks, qt.HasLen, 0)
}

func TestLocateXMPPacket(t *testing.T) {
	c := qt.New(t)

	b := []byte("junk before <?xpacket begin=\xef\xbb\xbf' id='W5M0MpCehiHzreSzNTczkc9d'?>hello<?xpacket end='w'?>trailer")
	start, end, ok := locateXMPPacket(b)
	c.Assert(ok, qt.IsTrue)
	c.Assert(string(b[start:end]), qt.Contains, "hello")

	_, _, ok = locateXMPPacket([]byte("no packet here"))
	c.Assert(ok, qt.IsFalse)
}
