package inmemdb

import (
	"sort"
	"strings"
	"sync"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/announcement"
	"github.com/trezcool/investiga/core/funding"
	"github.com/trezcool/investiga/core/period"
	"github.com/trezcool/investiga/core/research"
	"github.com/trezcool/investiga/core/role"
	"github.com/trezcool/investiga/core/scholarship"
	"github.com/trezcool/investiga/core/thesis"
	"github.com/trezcool/investiga/core/user"
)

type (
	// DB holds every table behind a single lock, so that multi-table changes are atomic
	// and the foreign keys behave as in the postgres schema.
	DB struct {
		mutex sync.RWMutex
		seq   map[string]int

		roles          map[int]role.Role
		users          map[int]user.User
		theses         map[int]thesis.Thesis
		researches     map[int]research.Research
		userResearches map[link]struct{}
		periods        map[int]period.ApplicationPeriod
		scholarships   map[int]scholarship.Scholarship
		funding        map[int]funding.FundingRequest
		announcements  map[int]announcement.Announcement
		interests      map[link]announcement.Interest
	}

	// link is a row of a join table.
	link struct {
		left, right int
	}
)

// Open returns an empty database, seeded with the default roles.
func Open() *DB {
	db := &DB{
		seq:            make(map[string]int),
		roles:          make(map[int]role.Role),
		users:          make(map[int]user.User),
		theses:         make(map[int]thesis.Thesis),
		researches:     make(map[int]research.Research),
		userResearches: make(map[link]struct{}),
		periods:        make(map[int]period.ApplicationPeriod),
		scholarships:   make(map[int]scholarship.Scholarship),
		funding:        make(map[int]funding.FundingRequest),
		announcements:  make(map[int]announcement.Announcement),
		interests:      make(map[link]announcement.Interest),
	}
	for _, id := range []int{role.Executive, role.Student, role.Investigator} {
		db.roles[id] = role.Role{ID: id, AccountScope: role.Names[id]}
	}
	db.seq["roles"] = role.Investigator
	return db
}

func (db *DB) nextID(table string) int {
	db.seq[table]++
	return db.seq[table]
}

// nullRefs sets to nil every reference to id, the in-memory ON DELETE SET NULL.
func nullRefs(ref **int, id int) bool {
	if *ref != nil && **ref == id {
		*ref = nil
		return true
	}
	return false
}

func copyInts(ids []int) []int {
	if ids == nil {
		return nil
	}
	return append(make([]int, 0, len(ids)), ids...)
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append(make([]string, 0, len(ss)), ss...)
}

func copyFiles(files []core.File) []core.File {
	return append(make([]core.File, 0, len(files)), files...)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// comparators map orderable columns to a three-way comparison of two rows.
type comparators[T any] map[string]func(a, b T) int

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpString(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// sortRows orders rows by orderings, then by id.
func sortRows[T any](rows []T, orderings []core.DBOrdering, cmps comparators[T], id func(T) int) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range orderings {
			cmp, ok := cmps[ord.Field]
			if !ok {
				continue
			}
			c := cmp(rows[i], rows[j])
			if !ord.Ascending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return id(rows[i]) < id(rows[j])
	})
}

// paginate returns the requested page of rows along with the count of rows.
func paginate[T any](rows []T, pr core.PageRequest) ([]T, int) {
	pr.Clean()
	start, end := pr.Bounds(len(rows))
	return rows[start:end], len(rows)
}
