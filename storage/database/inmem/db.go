// Package inmemdb keeps the repositories in memory. It backs the API and CLI tests.
package inmemdb

import (
	"sort"
	"strings"
	"sync"

	"github.com/MC-tan/school-database-app/core"
	"github.com/MC-tan/school-database-app/core/student"
	"github.com/MC-tan/school-database-app/core/user"
)

type DB struct {
	mutex    sync.RWMutex
	users    map[string]user.User
	students map[string]student.Student

	// txMutex serializes student writes so that a rollback never discards another writer's changes.
	txMutex sync.Mutex
}

func Open() *DB {
	return &DB{
		users:    make(map[string]user.User),
		students: make(map[string]student.Student),
	}
}

// Reset drops every row.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]user.User)
	db.students = make(map[string]student.Student)
}

type compareFunc func(i, j int) int

// sortBy sorts n items by ordering, each field compared by compare. Ties fall back to tieBreak.
func sortBy(n int, swap func(i, j int), ordering []core.DBOrdering, compare func(field string, i, j int) int, tieBreak compareFunc) {
	sort.Sort(&sorter{n: n, swap: swap, less: func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(ord.Field, i, j)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return tieBreak(i, j) < 0
	}})
}

type sorter struct {
	n    int
	swap func(i, j int)
	less func(i, j int) bool
}

func (s *sorter) Len() int           { return s.n }
func (s *sorter) Swap(i, j int)      { s.swap(i, j) }
func (s *sorter) Less(i, j int) bool { return s.less(i, j) }

func contains(value, term string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(term))
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
