package config

// Boards is the ordered list offered by `lumos init`. The first entry is the default.
var Boards = []string{"LumosBrain", "LumosMiniBrain", "LumosEscMini"}

// DefaultBoard is the board selected when the user gives no valid choice.
var DefaultBoard = Boards[0]

// boardProfiles maps board names to their MCU description.
var boardProfiles = map[string]BoardProfile{
	"LumosBrain": {
		Name:     "LumosBrain",
		Platform: "h7",
		MCU:      "STM32H723xx",
		CPU:      "cortex-m7",
		FloatABI: "hard",
		FPU:      "fpv5-d16",
	},
}

// IsKnownBoard reports whether name is one of the selectable boards.
func IsKnownBoard(name string) bool {
	for _, b := range Boards {
		if b == name {
			return true
		}
	}
	return false
}

// LookupBoard returns the hardware profile for a board.
// Boards without a dedicated profile get the LumosBrain profile under their own
// name, and ok is false so callers can warn about the fallback.
func LookupBoard(name string) (profile BoardProfile, ok bool) {
	if p, found := boardProfiles[name]; found {
		return p, true
	}
	p := boardProfiles["LumosBrain"]
	p.Name = name
	return p, false
}
