package yenc

import "bytes"

// The accelerated decode path. Instead of branching per byte it jumps
// between '=' positions with bytes.IndexByte and translates the clean
// runs in between with a single pass. Output is bit-for-bit identical
// to decodeLineRef.

// decodeLineFast appends the decoded payload of one body line to out.
func decodeLineFast(line []byte, out []byte) []byte {
	for len(line) > 0 {
		i := bytes.IndexByte(line, escapeChar)
		if i < 0 {
			return translateRun(out, line)
		}
		out = translateRun(out, line[:i])
		line = line[i+1:]
		if len(line) == 0 {
			// Dangling escape at end of line; drop it.
			return out
		}
		out = append(out, line[0]-escapeShift-byteOffset)
		line = line[1:]
	}
	return out
}

// translateRun shifts a run containing no escape characters. Runs with
// stray control bytes fall back to the per-byte loop so the drop
// semantics stay identical to the reference path.
func translateRun(out, run []byte) []byte {
	if len(run) == 0 {
		return out
	}
	if bytes.IndexByte(run, 0x00) >= 0 ||
		bytes.IndexByte(run, 0x0A) >= 0 ||
		bytes.IndexByte(run, 0x0D) >= 0 {
		return decodeLineRef(run, out)
	}

	n := len(out)
	out = append(out, run...)
	seg := out[n:]
	for i := range seg {
		seg[i] -= byteOffset
	}
	return out
}
