package rds

import (
	"sort"
	"sync"
	"time"
)

// Field identifies which station attribute a change notification refers to.
type Field int

const (
	FieldPS Field = iota
	FieldPTY
	FieldTrafficProgram
	FieldTrafficAnnouncement
	FieldMusicSpeech
	FieldDecoderID
	FieldPIN
	FieldAF
	FieldRadioText
	FieldClockTime
	FieldPTYN
	FieldLongPS
	FieldODA
	FieldEON
)

func (f Field) String() string {
	switch f {
	case FieldPS:
		return "ps"
	case FieldPTY:
		return "pty"
	case FieldTrafficProgram:
		return "tp"
	case FieldTrafficAnnouncement:
		return "ta"
	case FieldMusicSpeech:
		return "ms"
	case FieldDecoderID:
		return "di"
	case FieldPIN:
		return "pin"
	case FieldAF:
		return "af"
	case FieldRadioText:
		return "radiotext"
	case FieldClockTime:
		return "clock"
	case FieldPTYN:
		return "ptyn"
	case FieldLongPS:
		return "long-ps"
	case FieldODA:
		return "oda"
	case FieldEON:
		return "eon"
	}

	return "unknown"
}

// Event is one change notification: the station and the field that changed.
type Event struct {
	PI    uint16
	Field Field
}

// ClockTime is a decoded group 4A timestamp: broadcast UTC plus the local
// offset announced by the station.
type ClockTime struct {
	UTC    time.Time
	Offset time.Duration
}

// Local returns the timestamp shifted into the announced local zone.
func (c ClockTime) Local() time.Time {
	return c.UTC.In(time.FixedZone("", int(c.Offset/time.Second)))
}

// ODA is one Open Data Application registration from group 3A.
type ODA struct {
	AID       uint16
	GroupType uint8
	VersionB  bool
	Message   uint16
}

// EONEntry is cross-referenced information about an other network carried in
// group 14A.
type EONEntry struct {
	PI             uint16
	PS             string
	TrafficProgram bool
}

// Station is a read-only snapshot of everything decoded for one PI.
type Station struct {
	PI          uint16
	PS          string
	PTY         uint8
	TP          bool
	TA          bool
	MusicSpeech bool
	DecoderID   uint8
	PIN         uint16
	AF          []int // kHz, sorted
	RadioText   string
	ClockTime   *ClockTime
	PTYN        string
	LongPS      string
	ODA         []ODA
	EON         []EONEntry
}

// textSlot is a character buffer assembled from indexed segments, where a
// segment only becomes visible after two consecutive identical writes.
type textSlot struct {
	segSize   int
	pending   []byte
	confirmed []byte
	counts    []uint8
}

func newTextSlot(size, segSize int) *textSlot {
	return &textSlot{
		segSize:   segSize,
		pending:   make([]byte, size),
		confirmed: make([]byte, size),
		counts:    make([]uint8, size/segSize),
	}
}

// write stores chars at segment index seg and reports whether the confirmed
// buffer changed.
func (t *textSlot) write(seg int, chars []byte) bool {
	if seg < 0 || (seg+1)*t.segSize > len(t.pending) || len(chars) != t.segSize {
		return false
	}

	off := seg * t.segSize

	same := true

	for i, c := range chars {
		if t.pending[off+i] != c {
			same = false
		}

		t.pending[off+i] = c
	}

	if same && t.counts[seg] < 255 {
		t.counts[seg]++
	} else if !same {
		t.counts[seg] = 1
	}

	if t.counts[seg] < 2 {
		return false
	}

	changed := false

	for i, c := range chars {
		if t.confirmed[off+i] != c {
			t.confirmed[off+i] = c
			changed = true
		}
	}

	return changed
}

func (t *textSlot) clear() {
	for i := range t.pending {
		t.pending[i] = 0
		t.confirmed[i] = 0
	}

	for i := range t.counts {
		t.counts[i] = 0
	}
}

// textPadded renders the confirmed buffer at its full fixed width, with
// unset positions reading as spaces. Program service names keep their
// 8-character frame.
func (t *textSlot) textPadded() string {
	out := make([]byte, len(t.confirmed))

	for i, c := range t.confirmed {
		if c == 0 {
			c = ' '
		}

		out[i] = c
	}

	return string(out)
}

// text renders the confirmed buffer: unset positions read as spaces, a
// carriage return terminates the message, and trailing spaces are trimmed.
func (t *textSlot) text() string {
	out := make([]byte, 0, len(t.confirmed))

	for _, c := range t.confirmed {
		if c == '\r' {
			break
		}

		if c == 0 {
			c = ' '
		}

		out = append(out, c)
	}

	end := len(out)
	for end > 0 && out[end-1] == ' ' {
		end--
	}

	return string(out[:end])
}

// eonState accumulates the PS fragments for one other-network PI.
type eonState struct {
	pi uint16
	tp bool
	ps [8]byte
}

// stationState is the mutable per-PI record behind the snapshot surface.
type stationState struct {
	pi uint16

	ps *textSlot

	// RadioText keeps one slot per group version; the toggle flags start at
	// 0xFF so the first observed A/B bit never flushes.
	rtA     *textSlot
	rtB     *textSlot
	rtFlagA uint8
	rtFlagB uint8
	rtIsB   bool // which version last wrote

	ptyn   *textSlot
	longPS *textSlot

	pty         uint8
	tp          bool
	ta          bool
	musicSpeech bool
	decoderID   uint8
	pin         uint16

	af        map[int]struct{}
	afPending int // announced list length; 0 until the count code arrives

	clock *ClockTime
	oda   map[uint16]ODA
	eon   map[uint16]*eonState
}

func newStationState(pi uint16) *stationState {
	return &stationState{
		pi:      pi,
		ps:      newTextSlot(8, 2),
		rtA:     newTextSlot(64, 4),
		rtB:     newTextSlot(32, 2),
		rtFlagA: 0xFF,
		rtFlagB: 0xFF,
		ptyn:    newTextSlot(8, 4),
		longPS:  newTextSlot(32, 4),
		af:      make(map[int]struct{}),
		oda:     make(map[uint16]ODA),
		eon:     make(map[uint16]*eonState),
	}
}

func (s *stationState) radioText() string {
	if s.rtIsB {
		return s.rtB.text()
	}

	return s.rtA.text()
}

func (s *stationState) snapshot() Station {
	st := Station{
		PI:          s.pi,
		PS:          s.ps.textPadded(),
		PTY:         s.pty,
		TP:          s.tp,
		TA:          s.ta,
		MusicSpeech: s.musicSpeech,
		DecoderID:   s.decoderID,
		PIN:         s.pin,
		RadioText:   s.radioText(),
		PTYN:        s.ptyn.text(),
		LongPS:      s.longPS.text(),
	}

	if s.clock != nil {
		c := *s.clock
		st.ClockTime = &c
	}

	for f := range s.af {
		st.AF = append(st.AF, f)
	}

	sort.Ints(st.AF)

	for _, o := range s.oda {
		st.ODA = append(st.ODA, o)
	}

	sort.Slice(st.ODA, func(i, j int) bool { return st.ODA[i].AID < st.ODA[j].AID })

	for _, e := range s.eon {
		ps := make([]byte, 0, 8)

		for _, c := range e.ps {
			if c == 0 {
				c = ' '
			}

			ps = append(ps, c)
		}

		st.EON = append(st.EON, EONEntry{
			PI:             e.pi,
			PS:             string(ps),
			TrafficProgram: e.tp,
		})
	}

	sort.Slice(st.EON, func(i, j int) bool { return st.EON[i].PI < st.EON[j].PI })

	return st
}

// Database is the decoded station store. Writes happen only on the pipeline
// worker; readers take consistent snapshot copies at any time. Change
// notifications stream through a bounded queue where the oldest entry is
// discarded on overflow.
type Database struct {
	mu sync.RWMutex

	stations map[uint16]*stationState

	events chan Event

	groupCounts   map[uint8]uint64
	unknownGroups uint64
}

// NewDatabase builds an empty store.
func NewDatabase() *Database {
	return &Database{
		stations:    make(map[uint16]*stationState),
		events:      make(chan Event, 256),
		groupCounts: make(map[uint8]uint64),
	}
}

// Events is the change-notification stream. Consumers that fall behind lose
// the oldest notifications, never the newest.
func (db *Database) Events() <-chan Event {
	return db.events
}

// Snapshot returns a copy of the station record for pi.
func (db *Database) Snapshot(pi uint16) (Station, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s, ok := db.stations[pi]
	if !ok {
		return Station{}, false
	}

	return s.snapshot(), true
}

// PIs returns the known program identifiers, sorted. The set is monotonic
// within a session: the decoder never removes a station.
func (db *Database) PIs() []uint16 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]uint16, 0, len(db.stations))
	for pi := range db.stations {
		out = append(out, pi)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// All returns snapshots of every known station, sorted by PI.
func (db *Database) All() []Station {
	out := make([]Station, 0)

	for _, pi := range db.PIs() {
		if st, ok := db.Snapshot(pi); ok {
			out = append(out, st)
		}
	}

	return out
}

// UnknownGroups counts validated groups whose type has no decoder.
func (db *Database) UnknownGroups() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.unknownGroups
}

// GroupCount returns how many groups of the given type and version were
// applied.
func (db *Database) GroupCount(groupType uint8, versionB bool) uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.groupCounts[groupKey(groupType, versionB)]
}

// Reset drops every station. This is the only way a PI ever disappears.
func (db *Database) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.stations = make(map[uint16]*stationState)
	db.groupCounts = make(map[uint8]uint64)
	db.unknownGroups = 0
}

func (db *Database) station(pi uint16) *stationState {
	s, ok := db.stations[pi]
	if !ok {
		s = newStationState(pi)
		db.stations[pi] = s
	}

	return s
}

func (db *Database) notify(pi uint16, field Field) {
	ev := Event{PI: pi, Field: field}

	for {
		select {
		case db.events <- ev:
			return
		default:
		}

		// Full: discard the oldest and retry.
		select {
		case <-db.events:
		default:
		}
	}
}

func groupKey(groupType uint8, versionB bool) uint8 {
	k := groupType << 1
	if versionB {
		k |= 1
	}

	return k
}
