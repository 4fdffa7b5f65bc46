package udf

import (
	"crypto/md5"
	"encoding/hex"
	"hash"

	"github.com/ajitpratap0/xdrflow/pkg/plan/expr"
)

// md5Impl keeps one hasher per evaluator.
type md5Impl struct {
	h   hash.Hash
	sum [md5.Size]byte
}

func newMD5() expr.Impl {
	return &md5Impl{h: md5.New()}
}

// Call hashes value||salt. Text input yields 32 lowercase hex characters,
// bytes input yields the raw 16-byte digest.
func (m *md5Impl) Call(args []expr.Datum) (expr.Datum, error) {
	if args[0].IsNull() {
		return expr.Null(), nil
	}
	b, err := binaryArg("md5", args[0])
	if err != nil {
		return expr.Null(), err
	}

	m.h.Reset()
	m.h.Write(b)
	if len(args) == 2 && !args[1].IsNull() {
		salt, err := binaryArg("md5", args[1])
		if err != nil {
			return expr.Null(), err
		}
		m.h.Write(salt)
	}
	sum := m.h.Sum(m.sum[:0])

	if args[0].Kind() == expr.KindBytes {
		out := make([]byte, md5.Size)
		copy(out, sum)
		return expr.Bytes(out), nil
	}
	out := make([]byte, hex.EncodedLen(md5.Size))
	hex.Encode(out, sum)
	return expr.Text(out), nil
}
