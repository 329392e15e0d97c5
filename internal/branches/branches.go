// Package branches holds library branch reference data.
package branches

// Branch is a library location.
type Branch struct {
	ID       string `json:"id"`
	RemoteID string `json:"remoteId,omitempty"`
	Version  int64  `json:"version,omitempty"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Hours    string `json:"hours"`
}

func (b Branch) DedupKey() string  { return b.ID }
func (b Branch) DocID() string     { return b.RemoteID }
func (b Branch) DocVersion() int64 { return b.Version }

// WithDoc attaches remote identity.
func (b Branch) WithDoc(id string, version int64) Branch {
	b.RemoteID = id
	b.Version = version
	if b.ID == "" {
		b.ID = id
	}
	return b
}

// Defaults returns the three branches created on first run.
func Defaults() []Branch {
	return []Branch{
		{
			ID:      "branch-1",
			Name:    "Main Library",
			Address: "123 Library Street, Booktown, BT 12345",
			Phone:   "(555) 123-4567",
			Email:   "main@librahub.com",
			Hours:   "Mon-Fri: 9am-8pm, Sat: 10am-6pm, Sun: 12pm-5pm",
		},
		{
			ID:      "branch-2",
			Name:    "North Branch",
			Address: "456 Reader Avenue, Booktown, BT 12346",
			Phone:   "(555) 987-6543",
			Email:   "north@librahub.com",
			Hours:   "Mon-Fri: 10am-7pm, Sat: 10am-5pm, Sun: Closed",
		},
		{
			ID:      "branch-3",
			Name:    "South Branch",
			Address: "789 Book Boulevard, Booktown, BT 12347",
			Phone:   "(555) 456-7890",
			Email:   "south@librahub.com",
			Hours:   "Mon-Fri: 9am-7pm, Sat-Sun: 11am-4pm",
		},
	}
}

// ByID returns the branch with id, or nil.
func ByID(all []Branch, id string) *Branch {
	for i := range all {
		if all[i].ID == id {
			return &all[i]
		}
	}
	return nil
}

// Name returns the branch name for id, or id itself when unknown.
func Name(all []Branch, id string) string {
	if b := ByID(all, id); b != nil {
		return b.Name
	}
	return id
}
