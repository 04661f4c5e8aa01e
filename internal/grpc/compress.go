package grpc

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
)

// ZstdName is the grpc-encoding identifier of the zstd compressor.
const ZstdName = "zstd"

func init() {
	encoding.RegisterCompressor(newZstdCompressor())
}

// zstdCompressor pools encoders and decoders across RPCs.
type zstdCompressor struct {
	encoders sync.Pool
	decoders sync.Pool
}

func newZstdCompressor() *zstdCompressor {
	return &zstdCompressor{}
}

// Name reports the identifier negotiated in the grpc-encoding header.
func (c *zstdCompressor) Name() string { return ZstdName }

// Compress wraps w in a pooled zstd encoder. Closing the writer returns it to the pool.
func (c *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	enc, _ := c.encoders.Get().(*zstd.Encoder)
	if enc == nil {
		created, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, err
		}
		enc = created
	} else {
		enc.Reset(w)
	}
	return &pooledEncoder{enc: enc, pool: &c.encoders}, nil
}

// Decompress wraps r in a pooled zstd decoder that is recycled at EOF.
func (c *zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	dec, _ := c.decoders.Get().(*zstd.Decoder)
	if dec == nil {
		created, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		dec = created
	} else if err := dec.Reset(r); err != nil {
		c.decoders.Put(dec)
		return nil, err
	}
	return &pooledDecoder{dec: dec, pool: &c.decoders}, nil
}

type pooledEncoder struct {
	enc  *zstd.Encoder
	pool *sync.Pool
}

func (e *pooledEncoder) Write(p []byte) (int, error) { return e.enc.Write(p) }

func (e *pooledEncoder) Close() error {
	err := e.enc.Close()
	e.pool.Put(e.enc)
	return err
}

type pooledDecoder struct {
	dec  *zstd.Decoder
	pool *sync.Pool
	done bool
}

func (d *pooledDecoder) Read(p []byte) (int, error) {
	if d.done {
		return 0, io.EOF
	}
	n, err := d.dec.Read(p)
	if err == io.EOF {
		//1.- The decoder is recycled exactly once, after the stream is fully drained.
		d.done = true
		d.pool.Put(d.dec)
	}
	return n, err
}
