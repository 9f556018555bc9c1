package catalog

import "strings"

// Item is a selectable player in the draft catalog. The catalog is fixed at
// compile time and read-only at runtime; identity is by ID.
type Item struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Country string `json:"country"`
}

// Player roles used in the catalog.
const (
	RoleBatsman      = "Batsman"
	RoleBowler       = "Bowler"
	RoleAllRounder   = "All-rounder"
	RoleWicketKeeper = "Wicket-Keeper"
)

var items = []Item{
	{ID: 1, Name: "Virat Kohli", Role: RoleBatsman, Country: "India"},
	{ID: 2, Name: "Rohit Sharma", Role: RoleBatsman, Country: "India"},
	{ID: 3, Name: "MS Dhoni", Role: RoleWicketKeeper, Country: "India"},
	{ID: 4, Name: "Jasprit Bumrah", Role: RoleBowler, Country: "India"},
	{ID: 5, Name: "Ravindra Jadeja", Role: RoleAllRounder, Country: "India"},
	{ID: 6, Name: "KL Rahul", Role: RoleBatsman, Country: "India"},
	{ID: 7, Name: "Hardik Pandya", Role: RoleAllRounder, Country: "India"},
	{ID: 8, Name: "Shikhar Dhawan", Role: RoleBatsman, Country: "India"},
	{ID: 9, Name: "Bhuvneshwar Kumar", Role: RoleBowler, Country: "India"},
	{ID: 10, Name: "Yuzvendra Chahal", Role: RoleBowler, Country: "India"},
	{ID: 11, Name: "Rishabh Pant", Role: RoleWicketKeeper, Country: "India"},
	{ID: 12, Name: "Mohammed Shami", Role: RoleBowler, Country: "India"},
	{ID: 13, Name: "Ravichandran Ashwin", Role: RoleAllRounder, Country: "India"},
	{ID: 14, Name: "Ishan Kishan", Role: RoleWicketKeeper, Country: "India"},
	{ID: 15, Name: "Suryakumar Yadav", Role: RoleBatsman, Country: "India"},
	{ID: 16, Name: "Babar Azam", Role: RoleBatsman, Country: "Pakistan"},
	{ID: 17, Name: "Shaheen Afridi", Role: RoleBowler, Country: "Pakistan"},
	{ID: 18, Name: "Mohammad Rizwan", Role: RoleWicketKeeper, Country: "Pakistan"},
	{ID: 19, Name: "Joe Root", Role: RoleBatsman, Country: "England"},
	{ID: 20, Name: "Ben Stokes", Role: RoleAllRounder, Country: "England"},
	{ID: 21, Name: "Jos Buttler", Role: RoleWicketKeeper, Country: "England"},
	{ID: 22, Name: "Jofra Archer", Role: RoleBowler, Country: "England"},
	{ID: 23, Name: "Steve Smith", Role: RoleBatsman, Country: "Australia"},
	{ID: 24, Name: "David Warner", Role: RoleBatsman, Country: "Australia"},
	{ID: 25, Name: "Pat Cummins", Role: RoleBowler, Country: "Australia"},
	{ID: 26, Name: "Glenn Maxwell", Role: RoleAllRounder, Country: "Australia"},
	{ID: 27, Name: "Kane Williamson", Role: RoleBatsman, Country: "New Zealand"},
	{ID: 28, Name: "Trent Boult", Role: RoleBowler, Country: "New Zealand"},
	{ID: 29, Name: "AB de Villiers", Role: RoleBatsman, Country: "South Africa"},
	{ID: 30, Name: "Kagiso Rabada", Role: RoleBowler, Country: "South Africa"},
}

// All returns a fresh copy of the full catalog. Callers own the returned
// slice and may mutate it freely.
func All() []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Size returns the number of items in the catalog.
func Size() int {
	return len(items)
}

// ByID looks up a catalog item by its ID.
func ByID(id int) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Filter returns catalog items matching the given role and country. Empty
// arguments match everything; comparisons are case-insensitive.
func Filter(role, country string) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if role != "" && !strings.EqualFold(it.Role, role) {
			continue
		}
		if country != "" && !strings.EqualFold(it.Country, country) {
			continue
		}
		out = append(out, it)
	}
	return out
}
