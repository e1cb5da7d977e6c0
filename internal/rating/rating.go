package rating

import (
	"github.com/jason-s-yu/truco/internal/models"
)

// Of reads a user's 1v1 Glicko-2 rating. Users that never played get the defaults.
func Of(u models.User) Glicko2Rating {
	elo, rd, sigma := u.Rating1v1, u.Phi1v1, u.Sigma1v1
	if elo == 0 {
		elo = DefaultMu
	}
	if rd <= 0 {
		rd = DefaultPhi
	}
	if sigma <= 0 {
		sigma = DefaultSigma
	}
	return NewGlicko2Rating(elo, rd, sigma)
}

func apply(u models.User, r Glicko2Rating) models.User {
	u.Rating1v1 = r.ToElo()
	u.Phi1v1 = r.RD()
	u.Sigma1v1 = r.Sigma
	return u
}

// Update1v1 rates one finished match. Both updates are computed from the
// ratings held before the match.
func Update1v1(winner, loser models.User) (models.User, models.User) {
	w, l := Of(winner), Of(loser)
	return apply(winner, updateGlicko(w, l, 1)), apply(loser, updateGlicko(l, w, 0))
}
