package pghmri

// FileOption configures dataset creation.
type FileOption func(*fileOptions)

type fileOptions struct {
	headerSize int64
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{
		headerSize: 512,
	}
}

// WithHeaderSize sets the space initially reserved for the header when
// chunk data is stored in the header file. The reservation doubles until
// the header fits.
func WithHeaderSize(n int64) FileOption {
	return func(o *fileOptions) {
		if n > 0 {
			o.headerSize = n
		}
	}
}
