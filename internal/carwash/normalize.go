package carwash

// Row is the slice of a carwashes row that normalization looks at.
type Row struct {
	ID       int64
	Status   string
	IsActive bool
}

// Change rewrites one row to its canonical token and matching is_active flag.
type Change struct {
	ID       int64
	From     string
	To       string
	IsActive bool
	State    OpenState
}

type NormalizeReport struct {
	Scanned   int `json:"scanned"`
	Opened    int `json:"opened"`
	Closed    int `json:"closed"`
	Unchanged int `json:"unchanged"`
	Unknown   int `json:"unknown"`
	Failed    int `json:"failed"`
}

// PlanNormalization decides which rows need rewriting. Rows whose status is not a known
// synonym are left alone and counted as Unknown; they stay invisible either way.
func PlanNormalization(rows []Row) ([]Change, NormalizeReport) {
	rep := NormalizeReport{Scanned: len(rows)}
	var out []Change
	for _, r := range rows {
		st := Normalize(r.Status)
		if st == StateUnknown {
			rep.Unknown++
			continue
		}
		token, active := Canonical(st)
		if r.Status == token && r.IsActive == active {
			rep.Unchanged++
			continue
		}
		out = append(out, Change{ID: r.ID, From: r.Status, To: token, IsActive: active, State: st})
		if st == StateOpen {
			rep.Opened++
		} else {
			rep.Closed++
		}
	}
	return out, rep
}
