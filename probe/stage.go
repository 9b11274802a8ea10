package probe

import "fmt"

// Owner identifies which side currently holds the state buffer.
type Owner uint8

const (
	OwnerDevice Owner = iota
	OwnerHost
)

func (o Owner) String() string {
	if o == OwnerHost {
		return "host"
	}
	return "device"
}

// StageBuffer is the host-visible copy of a volume's probe state texture.
//
// The device side (tracing, shading, integration) owns the buffer between
// host windows. MapRead or MapWrite hands it to the host; Unmap hands it
// back. Mapping twice, or unmapping a buffer that is not mapped, is a
// programming error and panics.
type StageBuffer struct {
	records []Record
	owner   Owner
	writing bool

	// uploads counts write maps returned to the device.
	uploads int
}

// NewStageBuffer allocates n records, all uninitialized.
func NewStageBuffer(n int) *StageBuffer {
	s := &StageBuffer{records: make([]Record, n)}
	s.fill(UninitializedRecord)
	return s
}

// Len returns the number of records.
func (s *StageBuffer) Len() int {
	return len(s.records)
}

// Owner returns the current owner.
func (s *StageBuffer) Owner() Owner {
	return s.owner
}

// MapRead hands the records to the host for reading.
func (s *StageBuffer) MapRead() []Record {
	s.acquire(false)
	return s.records
}

// MapWrite hands the records to the host for modification.
func (s *StageBuffer) MapWrite() []Record {
	s.acquire(true)
	return s.records
}

// Unmap returns ownership to the device.
func (s *StageBuffer) Unmap() {
	if s.owner != OwnerHost {
		panic("probe: unmap of a stage buffer that is not mapped")
	}
	if s.writing {
		s.uploads++
	}
	s.owner = OwnerDevice
	s.writing = false
}

// Uploads returns how many write maps have been handed back.
func (s *StageBuffer) Uploads() int {
	return s.uploads
}

// Device gives device-side passes direct access. Panics while host-mapped.
func (s *StageBuffer) Device() []Record {
	if s.owner != OwnerDevice {
		panic("probe: device access while stage buffer is mapped by the host")
	}
	return s.records
}

// ResetUninitialized marks every probe uninitialized with zero offset.
func (s *StageBuffer) ResetUninitialized() {
	recs := s.MapWrite()
	for i := range recs {
		recs[i] = UninitializedRecord
	}
	s.Unmap()
}

// Counts tallies probes per state.
func (s *StageBuffer) Counts() [NumStates]int {
	var c [NumStates]int
	for _, r := range s.MapRead() {
		if int(r.State) < NumStates {
			c[r.State]++
		}
	}
	s.Unmap()
	return c
}

func (s *StageBuffer) acquire(write bool) {
	if s.owner != OwnerDevice {
		panic(fmt.Sprintf("probe: stage buffer already mapped by %s", s.owner))
	}
	s.owner = OwnerHost
	s.writing = write
}

func (s *StageBuffer) fill(r Record) {
	for i := range s.records {
		s.records[i] = r
	}
}
