package rds

import (
	"time"
)

// Apply decodes one validated group into the database. Every block in the
// group has already passed the syndrome check, so each datum may be written.
func (db *Database) Apply(blocks [4]uint16) {
	db.mu.Lock()

	pi := blocks[0]
	b := blocks[1]

	groupType := uint8(b >> 12)
	versionB := b&(1<<11) != 0

	db.groupCounts[groupKey(groupType, versionB)]++

	st := db.station(pi)

	var changed []Field

	note := func(f Field) {
		changed = append(changed, f)
	}

	if tp := b&(1<<10) != 0; tp != st.tp {
		st.tp = tp

		note(FieldTrafficProgram)
	}

	if pty := uint8((b >> 5) & 0x1F); pty != st.pty {
		st.pty = pty

		note(FieldPTY)
	}

	switch {
	case groupType == 0:
		st.applyBasic(blocks, versionB, note)
	case groupType == 1 && !versionB:
		if pin := blocks[3]; pin != st.pin {
			st.pin = pin

			note(FieldPIN)
		}
	case groupType == 2:
		st.applyRadioText(blocks, versionB, note)
	case groupType == 3 && !versionB:
		st.applyODA(blocks, note)
	case groupType == 4 && !versionB:
		st.applyClock(blocks, note)
	case groupType == 10 && !versionB:
		seg := int(blocks[1] & 1)
		if st.ptyn.write(seg, wordChars(blocks[2], blocks[3])) {
			note(FieldPTYN)
		}
	case groupType == 14 && !versionB:
		st.applyEON(blocks, note)
	case groupType == 15 && !versionB:
		seg := int(blocks[1] & 0x7)
		if st.longPS.write(seg, wordChars(blocks[2], blocks[3])) {
			note(FieldLongPS)
		}
	default:
		db.unknownGroups++
	}

	db.mu.Unlock()

	for _, f := range changed {
		db.notify(pi, f)
	}
}

// applyBasic handles groups 0A/0B: PS name segments, TA/MS flags, decoder
// identification, and (0A only) the alternative frequency list.
func (st *stationState) applyBasic(blocks [4]uint16, versionB bool, note func(Field)) {
	b := blocks[1]

	if ta := b&(1<<4) != 0; ta != st.ta {
		st.ta = ta

		note(FieldTrafficAnnouncement)
	}

	if ms := b&(1<<3) != 0; ms != st.musicSpeech {
		st.musicSpeech = ms

		note(FieldMusicSpeech)
	}

	addr := int(b & 3)

	// DI: each segment carries one bit, d3 in segment 0 down to d0 in
	// segment 3.
	diBit := uint8(3 - addr)

	di := st.decoderID
	if b&(1<<2) != 0 {
		di |= 1 << diBit
	} else {
		di &^= 1 << diBit
	}

	if di != st.decoderID {
		st.decoderID = di

		note(FieldDecoderID)
	}

	if st.ps.write(addr, wordChars(blocks[3])) {
		note(FieldPS)
	}

	if !versionB {
		if st.applyAFPair(byte(blocks[2]>>8), byte(blocks[2])) {
			note(FieldAF)
		}
	}
}

// AF code points, method A.
const (
	afCountBase = 224 // 224..249 announce a list of 0..25 entries
	afCountTop  = 249
	afFiller    = 205
	afFreqTop   = 204
)

// applyAFPair folds one alternative-frequency code pair into the set and
// reports whether it grew. Carrier codes map to 87.5 MHz + n×100 kHz. A count
// code only records the announced list length in afPending; the set is not
// closed once that many entries have arrived, and later carrier codes are
// still added.
func (st *stationState) applyAFPair(c1, c2 byte) bool {
	grew := false

	for _, c := range [2]byte{c1, c2} {
		switch {
		case c >= afCountBase && c <= afCountTop:
			st.afPending = int(c - afCountBase)
		case c >= 1 && c <= afFreqTop:
			freq := 87500 + 100*int(c)
			if _, ok := st.af[freq]; !ok {
				st.af[freq] = struct{}{}
				grew = true
			}
		case c == afFiller:
			// Padding, ignore.
		}
	}

	return grew
}

// applyRadioText handles groups 2A/2B, including the A/B toggle flush.
func (st *stationState) applyRadioText(blocks [4]uint16, versionB bool, note func(Field)) {
	b := blocks[1]
	flag := uint8(b>>4) & 1
	seg := int(b & 0xF)

	slot := st.rtA
	last := &st.rtFlagA

	if versionB {
		slot = st.rtB
		last = &st.rtFlagB
	}

	if *last != 0xFF && *last != flag {
		// Message change: the whole buffer restarts.
		slot.clear()

		note(FieldRadioText)
	}

	*last = flag
	st.rtIsB = versionB

	var wrote bool
	if versionB {
		wrote = slot.write(seg, wordChars(blocks[3]))
	} else {
		wrote = slot.write(seg, wordChars(blocks[2], blocks[3]))
	}

	if wrote {
		note(FieldRadioText)
	}
}

// applyODA handles group 3A: Open Data Application registration.
func (st *stationState) applyODA(blocks [4]uint16, note func(Field)) {
	b := blocks[1]
	aid := blocks[3]

	entry := ODA{
		AID:       aid,
		GroupType: uint8((b >> 1) & 0xF),
		VersionB:  b&1 != 0,
		Message:   blocks[2],
	}

	if prev, ok := st.oda[aid]; !ok || prev != entry {
		st.oda[aid] = entry

		note(FieldODA)
	}
}

// applyClock handles group 4A: Modified Julian Date, UTC time, and the local
// offset in half-hour steps.
func (st *stationState) applyClock(blocks [4]uint16, note func(Field)) {
	mjd := uint32(blocks[1]&0x3)<<15 | uint32(blocks[2])>>1
	hour := int(blocks[2]&1)<<4 | int(blocks[3]>>12)
	minute := int(blocks[3]>>6) & 0x3F

	if hour > 23 || minute > 59 {
		return
	}

	offset := time.Duration(blocks[3]&0x1F) * 30 * time.Minute
	if blocks[3]&(1<<5) != 0 {
		offset = -offset
	}

	year, month, day := mjdToDate(mjd)

	ct := &ClockTime{
		UTC:    time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC),
		Offset: offset,
	}

	if st.clock == nil || *st.clock != *ct {
		st.clock = ct

		note(FieldClockTime)
	}
}

// applyEON handles group 14A: enhanced other-network information, keyed by
// the cross-referenced PI in block D.
func (st *stationState) applyEON(blocks [4]uint16, note func(Field)) {
	b := blocks[1]
	piOn := blocks[3]

	e, ok := st.eon[piOn]
	if !ok {
		e = &eonState{pi: piOn}
		st.eon[piOn] = e

		note(FieldEON)
	}

	if tp := b&(1<<4) != 0; tp != e.tp {
		e.tp = tp

		note(FieldEON)
	}

	variant := int(b & 0xF)
	if variant <= 3 {
		chars := wordChars(blocks[2])
		if e.ps[variant*2] != chars[0] || e.ps[variant*2+1] != chars[1] {
			e.ps[variant*2] = chars[0]
			e.ps[variant*2+1] = chars[1]

			note(FieldEON)
		}
	}
}

// mjdToDate converts a Modified Julian Date into calendar year, month, day.
func mjdToDate(mjd uint32) (year, month, day int) {
	m := float64(mjd)

	yp := int((m - 15078.2) / 365.25)
	mp := int((m - 14956.1 - float64(int(float64(yp)*365.25))) / 30.6001)

	day = int(mjd) - 14956 - int(float64(yp)*365.25) - int(float64(mp)*30.6001)

	k := 0
	if mp == 14 || mp == 15 {
		k = 1
	}

	year = 1900 + yp + k
	month = mp - 1 - k*12

	return year, month, day
}

// wordChars splits 16-bit info words into their transmitted characters.
func wordChars(words ...uint16) []byte {
	out := make([]byte, 0, 2*len(words))

	for _, w := range words {
		out = append(out, byte(w>>8), byte(w))
	}

	return out
}
