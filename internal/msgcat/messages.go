package msgcat

import "strings"

// Reject renders the message for a move rejection reason. from and to are
// algebraic squares and may be empty.
func (c *Catalog) Reject(reason, from, to string) string {
	data := map[string]string{"From": orDash(from), "To": orDash(to)}
	return c.Text("reject."+reason, data, reason)
}

// GameOver renders the message for a terminal cause. winner is "white", "black"
// or "" for no winner.
func (c *Catalog) GameOver(winner, cause string) string {
	key := "gameover." + cause
	if winner == "" && cause != "stalemate" {
		key = "gameover.abandoned"
	}
	data := map[string]string{"Winner": side(winner), "Loser": side(loser(winner))}
	return c.Text(key, data, cause)
}

// Error renders a lobby-level error message.
func (c *Catalog) Error(code string) string {
	return c.Text("error."+code, nil, code)
}

func loser(winner string) string {
	switch winner {
	case "white":
		return "black"
	case "black":
		return "white"
	}
	return ""
}

func side(color string) string {
	if color == "" {
		return "Nobody"
	}
	return strings.ToUpper(color[:1]) + color[1:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
