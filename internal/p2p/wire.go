// Package p2p implements the RPC transport and peer table (C10).
// Wire format generalizes the teacher's network.go raw-TCP protocol
// (fixed 12-byte command prefix, gob payload) into a length-delimited
// binary frame carrying a JSON payload, per the spec's "lets the node
// model evolve independently of the RPC schema" rationale.
package p2p

import (
	"encoding/binary"
	"fmt"
	"io"
)

const commandLength = 12

// cmdToBytes NUL-pads cmd into a fixed-width command prefix, exactly
// as the teacher's CmdToBytes does.
func cmdToBytes(cmd string) [commandLength]byte {
	var b [commandLength]byte
	copy(b[:], cmd)
	return b
}

func bytesToCmd(b [commandLength]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// writeFrame writes command(12) || length(4, BE) || payload to w.
func writeFrame(w io.Writer, command string, payload []byte) error {
	prefix := cmdToBytes(command)
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("p2p: write command: %w", err)
	}
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(payload)))
	if _, err := w.Write(length[:]); err != nil {
		return fmt.Errorf("p2p: write length: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("p2p: write payload: %w", err)
	}
	return nil
}

// maxFrameBytes bounds a single frame's payload to guard against a
// malformed or hostile length prefix forcing an unbounded allocation.
const maxFrameBytes = 64 << 20

// readFrame reads one command(12) || length(4, BE) || payload frame
// from r.
func readFrame(r io.Reader) (string, []byte, error) {
	var prefix [commandLength]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return "", nil, err
	}
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return "", nil, fmt.Errorf("p2p: read length: %w", err)
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length > maxFrameBytes {
		return "", nil, fmt.Errorf("p2p: frame too large: %d bytes", length)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return "", nil, fmt.Errorf("p2p: read payload: %w", err)
		}
	}
	return bytesToCmd(prefix), payload, nil
}
