package domain

import "fmt"

// DefaultWolfCounts maps player count to werewolf count. Exposed as
// configuration; the table below matches the default deployment.
func DefaultWolfCounts() map[int]int {
	return map[int]int{
		5: 1, 6: 1,
		7: 2, 8: 2, 9: 2,
		10: 3, 11: 3, 12: 3,
	}
}

// RoleSet returns the role multiset for a match of the given size:
// wolves per the table, one seer, one doctor, rest villagers.
func RoleSet(playerCount int, wolfCounts map[int]int) ([]Role, error) {
	if playerCount < 5 {
		return nil, fmt.Errorf("match size %d below minimum of 5", playerCount)
	}
	wolves, ok := wolfCounts[playerCount]
	if !ok || wolves <= 0 {
		return nil, fmt.Errorf("no wolf count configured for %d players", playerCount)
	}
	if wolves+2 >= playerCount {
		return nil, fmt.Errorf("wolf count %d leaves no villagers for %d players", wolves, playerCount)
	}
	roles := make([]Role, 0, playerCount)
	for i := 0; i < wolves; i++ {
		roles = append(roles, RoleWerewolf)
	}
	roles = append(roles, RoleSeer, RoleDoctor)
	for len(roles) < playerCount {
		roles = append(roles, RoleVillager)
	}
	return roles, nil
}
