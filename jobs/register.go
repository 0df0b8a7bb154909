package jobs

import "github.com/meridianfs/core/job"

// RegisterAll registers every job type in this package against r. Call
// once per process (or per test registry) before dispatching any of
// these types.
func RegisterAll(r *job.Registry) {
	r.Register(job.Schema{Name: EchoTypeName, Resumable: false, Version: 1, Description: "returns its input message"},
		echoFromJSON, echoFromBytes)

	r.Register(job.Schema{Name: CounterTypeName, Resumable: true, Version: 1, Description: "counts to a target, checking for suspension each tick"},
		counterFromJSON, counterFromBytes)

	r.Register(job.Schema{Name: FileCopyTypeName, Resumable: true, Version: 1, Description: "chunked, resumable file copy"},
		fileCopyFromJSON, fileCopyFromBytes)

	r.Register(job.Schema{Name: HashFileTypeName, Resumable: true, Version: 1, Description: "streaming sha256 digest"},
		hashFileFromJSON, hashFileFromBytes)

	r.Register(job.Schema{Name: IndexerTypeName, Resumable: true, Version: 1, Description: "walks a location, indexing entries"},
		indexerFromJSON, indexerFromBytes)

	r.Register(job.Schema{Name: ThumbnailTypeName, Resumable: false, Version: 1, Description: "generates a placeholder thumbnail"},
		thumbnailFromJSON, thumbnailFromBytes)
}
