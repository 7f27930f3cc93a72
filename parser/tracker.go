package parser

import "fmt"

// YearContext is the year of study module rows are currently attributed to.
// It is a plain value: Enter returns the next context rather than mutating
// hidden state, so traversal order is the only thing that drives it.
type YearContext struct {
	Year   int
	Active bool
}

// Buckets is the modules_by_year mapping under construction. Keys are
// "year_<n>"; a bucket once created is never replaced.
type Buckets map[string]*YearBucket

// BucketKey returns the modules_by_year key for a year of study.
func BucketKey(year int) string {
	return fmt.Sprintf("year_%d", year)
}

// Enter applies a year header. The bucket is created with the header's level
// if it does not exist yet; otherwise its level is left untouched and a
// disagreeing level is returned as a conflict.
func (c YearContext) Enter(h YearHeader, buckets Buckets) (YearContext, *LevelConflict) {
	var conflict *LevelConflict
	key := BucketKey(h.Year)
	if b, ok := buckets[key]; !ok {
		buckets[key] = &YearBucket{Year: h.Year, FHEQLevel: h.Level, Modules: []ModuleRecord{}}
	} else if b.FHEQLevel != h.Level {
		conflict = &LevelConflict{Year: h.Year, Recorded: b.FHEQLevel, Seen: h.Level}
	}
	return YearContext{Year: h.Year, Active: true}, conflict
}

// Attribute appends accepted modules to the active bucket. It reports false,
// leaving buckets unchanged, when no header has been seen yet.
func (c YearContext) Attribute(mods []ModuleRecord, buckets Buckets) bool {
	if !c.Active {
		return false
	}
	b, ok := buckets[BucketKey(c.Year)]
	if !ok {
		return false
	}
	b.Modules = append(b.Modules, mods...)
	return true
}
