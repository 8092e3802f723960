// Package nodes wires every concrete node type into a pipeline.Registry so
// graph configuration can refer to them by name.
package nodes

import (
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/nodes/cache"
	nodeio "github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/nodes/io"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/nodes/transform"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/nodes/util"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// NewRegistry builds a pipeline.Registry with every node type this project
// ships registered under the name graph configuration uses to refer to it.
func NewRegistry() *pipeline.Registry {
	r := pipeline.NewRegistry()

	r.Register("null_source", util.NullSourceFactory{})
	r.Register("split", util.SplitFactory{})
	r.Register("cache", cache.Factory{})

	r.Register("raw_blob_reader", nodeio.RawBlobReaderFactory{})
	r.Register("raw_blob_writer", nodeio.RawBlobWriterFactory{})
	r.Register("cinema_dng_reader", nodeio.CinemaDngReaderFactory{})
	r.Register("cinema_dng_writer", nodeio.CinemaDngWriterFactory{})
	r.Register("benchmark_sink", nodeio.BenchmarkSinkFactory{})

	r.Register("dual_frame_raw_decoder", transform.DualFrameRawDecoderFactory{})
	r.Register("reverse_dual_frame_raw_decoder", transform.ReverseDualFrameRawDecoderFactory{})
	r.Register("bitdepth_convert", transform.BitDepthConverterFactory{})
	r.Register("debayer", transform.DebayerFactory{})
	r.Register("row_noise_removal", transform.RowNoiseRemovalFactory{})
	r.Register("fp_to_uint", transform.FpToUintFactory{})
	r.Register("rgb_to_rgba", transform.RgbToRgbaFactory{})
	r.Register("sz3_compress", transform.Sz3CompressFactory{})
	r.Register("sz3_decompress", transform.Sz3DecompressFactory{})

	return r
}
