package storage

import (
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/cebingest/core"
)

// Serializers for ledger values. They follow the mus-go Serializer shape
// (Marshal, Unmarshal, Size) and encode fields in declaration order.
// Times are stored as Unix microseconds in UTC, with 0 for the zero time.

var (
	statsMUS      = statsSer{}
	checkpointMUS = checkpointSer{}
	failuresMUS   = failuresSer{}
)

type writer struct {
	bs []byte
	n  int
}

func (w *writer) str(v string) { w.n += ord.String.Marshal(v, w.bs[w.n:]) }
func (w *writer) int(v int) { w.n += varint.Int.Marshal(v, w.bs[w.n:]) }
func (w *writer) float(v float64) { w.n += varint.Uint64.Marshal(math.Float64bits(v), w.bs[w.n:]) }
func (w *writer) time(v time.Time) {
	w.n += varint.Int64.Marshal(timeToMicro(v), w.bs[w.n:])
}

type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) str() (v string) {
	if r.err != nil {
		return
	}
	var n int
	v, n, r.err = ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	return
}

func (r *reader) int() (v int) {
	if r.err != nil {
		return
	}
	var n int
	v, n, r.err = varint.Int.Unmarshal(r.bs[r.n:])
	r.n += n
	return
}

func (r *reader) float() float64 {
	if r.err != nil {
		return 0
	}
	bits, n, err := varint.Uint64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return math.Float64frombits(bits)
}

func (r *reader) time() time.Time {
	if r.err != nil {
		return time.Time{}
	}
	micro, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return microToTime(micro)
}

func timeToMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microToTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func timeSize(t time.Time) int {
	return varint.Int64.Size(timeToMicro(t))
}

type statsSer struct{}

func (statsSer) Marshal(v core.RunStatistics, bs []byte) (n int) {
	w := &writer{bs: bs}
	w.str(v.RunID)
	w.str(string(v.Stage))
	w.str(v.Category)
	w.int(v.TotalItems)
	w.int(v.Successful)
	w.int(v.Failed)
	w.int(v.Skipped)
	w.int(v.TotalChunks)
	w.int(v.TotalPages)
	w.int(v.TotalTokens)
	w.float(v.EstimatedCost)
	w.str(v.Model)
	w.str(v.Namespace)
	w.time(v.StartTime)
	w.time(v.EndTime)
	return w.n
}

func (statsSer) unmarshal(r *reader) (v core.RunStatistics) {
	v.RunID = r.str()
	v.Stage = core.Stage(r.str())
	v.Category = r.str()
	v.TotalItems = r.int()
	v.Successful = r.int()
	v.Failed = r.int()
	v.Skipped = r.int()
	v.TotalChunks = r.int()
	v.TotalPages = r.int()
	v.TotalTokens = r.int()
	v.EstimatedCost = r.float()
	v.Model = r.str()
	v.Namespace = r.str()
	v.StartTime = r.time()
	v.EndTime = r.time()
	return
}

func (s statsSer) Unmarshal(bs []byte) (v core.RunStatistics, n int, err error) {
	r := &reader{bs: bs}
	v = s.unmarshal(r)
	return v, r.n, r.err
}

func (statsSer) Size(v core.RunStatistics) (size int) {
	size += ord.String.Size(v.RunID)
	size += ord.String.Size(string(v.Stage))
	size += ord.String.Size(v.Category)
	for _, c := range []int{v.TotalItems, v.Successful, v.Failed, v.Skipped, v.TotalChunks, v.TotalPages, v.TotalTokens} {
		size += varint.Int.Size(c)
	}
	size += varint.Uint64.Size(math.Float64bits(v.EstimatedCost))
	size += ord.String.Size(v.Model)
	size += ord.String.Size(v.Namespace)
	size += timeSize(v.StartTime)
	size += timeSize(v.EndTime)
	return
}

type checkpointSer struct{}

func (checkpointSer) Marshal(v core.CheckpointRecord, bs []byte) (n int) {
	w := &writer{bs: bs}
	w.str(string(v.Stage))
	w.str(v.Category)
	w.int(v.ProcessedCount)
	w.time(v.Timestamp)
	w.n += statsMUS.Marshal(v.Stats, bs[w.n:])
	return w.n
}

func (checkpointSer) Unmarshal(bs []byte) (v core.CheckpointRecord, n int, err error) {
	r := &reader{bs: bs}
	v.Stage = core.Stage(r.str())
	v.Category = r.str()
	v.ProcessedCount = r.int()
	v.Timestamp = r.time()
	v.Stats = statsMUS.unmarshal(r)
	return v, r.n, r.err
}

func (checkpointSer) Size(v core.CheckpointRecord) (size int) {
	size += ord.String.Size(string(v.Stage))
	size += ord.String.Size(v.Category)
	size += varint.Int.Size(v.ProcessedCount)
	size += timeSize(v.Timestamp)
	size += statsMUS.Size(v.Stats)
	return
}

type failuresSer struct{}

func (failuresSer) Marshal(v []core.Failure, bs []byte) (n int) {
	w := &writer{bs: bs}
	w.int(len(v))
	for _, f := range v {
		w.str(f.Item)
		w.str(f.Error)
	}
	return w.n
}

func (failuresSer) Unmarshal(bs []byte) (v []core.Failure, n int, err error) {
	r := &reader{bs: bs}
	count := r.int()
	if r.err != nil {
		return nil, r.n, r.err
	}
	if count < 0 || count > len(bs) {
		return nil, r.n, ErrTruncatedData
	}
	v = make([]core.Failure, 0, count)
	for range count {
		f := core.Failure{Item: r.str(), Error: r.str()}
		if r.err != nil {
			return nil, r.n, r.err
		}
		v = append(v, f)
	}
	return v, r.n, nil
}

func (failuresSer) Size(v []core.Failure) (size int) {
	size += varint.Int.Size(len(v))
	for _, f := range v {
		size += ord.String.Size(f.Item)
		size += ord.String.Size(f.Error)
	}
	return
}
