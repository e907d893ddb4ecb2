package service

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
)

// attemptSeed derives a shuffle seed that is stable for one student's
// attempt at one exam and differs between students. The salt keeps the
// order unpredictable to anyone who does not hold it.
func attemptSeed(salt string, examID uuid.UUID, studentID int, extra ...uuid.UUID) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(salt))
	_, _ = h.Write(examID[:])
	_, _ = h.Write([]byte(strconv.Itoa(studentID)))
	for _, id := range extra {
		_, _ = h.Write(id[:])
	}
	return h.Sum64()
}

// shuffleSeeded permutes n elements deterministically from seed.
func shuffleSeeded(seed uint64, n int, swap func(i, j int)) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r.Shuffle(n, swap)
}
