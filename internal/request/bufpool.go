package request

import "sync"

const readBufSize = 8192

// readBufPool recycles the scratch buffers Reader uses for socket reads.
var readBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, readBufSize)
		return &buf
	},
}

func getReadBuf() *[]byte {
	return readBufPool.Get().(*[]byte)
}

func putReadBuf(buf *[]byte) {
	if cap(*buf) == readBufSize {
		*buf = (*buf)[:readBufSize]
		readBufPool.Put(buf)
	}
}
