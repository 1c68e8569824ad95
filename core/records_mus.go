package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// UploadEntryMUS serializes UploadEntry values in MUS format.
var UploadEntryMUS = uploadEntryMUS{}

// CheckpointMUS serializes Checkpoint values in MUS format.
var CheckpointMUS = checkpointMUS{}

type uploadEntryMUS struct{}

func (s uploadEntryMUS) Marshal(v UploadEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.Path, bs)
	n += ord.String.Marshal(v.FileID, bs[n:])
	n += ord.String.Marshal(v.Digest, bs[n:])
	return n + varint.Int64.Marshal(timeToMicro(v.UploadedAt), bs[n:])
}

func (s uploadEntryMUS) Unmarshal(bs []byte) (v UploadEntry, n int, err error) {
	v.Path, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.FileID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Digest, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	v.UploadedAt = microToTime(micros)
	return
}

func (s uploadEntryMUS) Size(v UploadEntry) (size int) {
	size = ord.String.Size(v.Path)
	size += ord.String.Size(v.FileID)
	size += ord.String.Size(v.Digest)
	return size + varint.Int64.Size(timeToMicro(v.UploadedAt))
}

type checkpointMUS struct{}

func (s checkpointMUS) Marshal(v Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.Key, bs)
	n += ord.String.Marshal(v.Value, bs[n:])
	return n + varint.Int64.Marshal(timeToMicro(v.UpdatedAt), bs[n:])
}

func (s checkpointMUS) Unmarshal(bs []byte) (v Checkpoint, n int, err error) {
	v.Key, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Value, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	v.UpdatedAt = microToTime(micros)
	return
}

func (s checkpointMUS) Size(v Checkpoint) (size int) {
	size = ord.String.Size(v.Key)
	size += ord.String.Size(v.Value)
	return size + varint.Int64.Size(timeToMicro(v.UpdatedAt))
}

// Timestamps are stored as Unix microseconds, zero time as 0.
func timeToMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microToTime(micros int64) time.Time {
	if micros == 0 {
		return time.Time{}
	}
	return time.UnixMicro(micros).UTC()
}
