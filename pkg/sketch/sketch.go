package sketch

// Type identifies a sketch kind in stats payloads.
type Type string

const (
	CountMinType    Type = "countmin"
	HyperLogLogType Type = "hyperloglog"
)

// FrequencySketch estimates per-value frequencies with bounded error.
type FrequencySketch interface {
	Add(value int64)
	Remove(value int64)
	Estimate(value int64) int64
	Count() int64
	Reset()
}

// DistinctSketch estimates the number of distinct values seen.
type DistinctSketch interface {
	Add(value int64)
	Count() int64
	Reset()
}

var (
	_ FrequencySketch = (*CountMin)(nil)
	_ DistinctSketch  = (*HyperLogLog)(nil)
)

func (c *CountMin) Type() Type {
	return CountMinType
}

func (h *HyperLogLog) Type() Type {
	return HyperLogLogType
}
