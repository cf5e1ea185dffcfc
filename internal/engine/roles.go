package engine

import (
	"math/rand"

	"github.com/kapu/werewolf-arena-go/internal/domain"
)

// AssignRoles draws the role distribution for n seats and shuffles it
// with the given seed. The same seed always yields the same seat→role
// mapping, which keeps finished matches replayable.
func AssignRoles(seed int64, n int, wolfCounts map[int]int) ([]domain.Role, error) {
	roles, err := domain.RoleSet(n, wolfCounts)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	shuffled := make([]domain.Role, n)
	for i, j := range rng.Perm(n) {
		shuffled[i] = roles[j]
	}
	return shuffled, nil
}
