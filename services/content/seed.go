package content

import (
	"encoding/json"

	game_constants "Mobius/constants/game"
	"Mobius/models/postgres"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type seedPlace struct {
	name    string
	isCrime bool
	clue    string
}

type seedCase struct {
	variant int
	title   string
	story   string
	places  []seedPlace
	roles   []string
}

var seedCases = []seedCase{
	{
		variant: game_constants.VARIANT_GLASS_TOWER,
		title:   "Glass Box Tower",
		story:   "The CFO of a trading firm is found dead in the 31st floor meeting room minutes before a board vote.",
		places: []seedPlace{
			{"Meeting room", true, "Two coffee cups, one still warm."},
			{"Server room", false, "Badge log shows a gap between 21:10 and 21:25."},
			{"Reception", false, "The visitor book has a torn page."},
			{"Rooftop", false, "A cigarette brand nobody on the floor smokes."},
			{"Archive", false, "The merger file is missing."},
			{"Elevator hall", false, "The camera was turned to face the wall."},
		},
		roles: []string{"Assistant", "Auditor", "Security chief", "Intern", "Rival trader", "Cleaner"},
	},
	{
		variant: game_constants.VARIANT_UNDERGROUND,
		title:   "Underground, Echo",
		story:   "A busker is found on the tracks of a closed subway platform after the last train.",
		places: []seedPlace{
			{"Closed platform", true, "Guitar strings cut, not snapped."},
			{"Ticket office", false, "A refund for a ticket bought after closing."},
			{"Maintenance tunnel", false, "Fresh footprints in the dust, two sizes."},
			{"Control room", false, "The announcement log replays the same message twice."},
			{"Kiosk", false, "A receipt for two hot drinks at 00:40."},
		},
		roles: []string{"Station guard", "Driver", "Street vendor", "Regular commuter", "Technician", "Journalist"},
	},
	{
		variant: game_constants.VARIANT_WHITE_NOISE,
		title:   "White Noise",
		story:   "A patient in the quiet ward stops breathing during a night with the monitors muted.",
		places: []seedPlace{
			{"Ward 7", true, "The alarm volume was set to zero by hand."},
			{"Nurses' station", false, "A shift swap that was never approved."},
			{"Pharmacy", false, "One vial too few in the night count."},
			{"Chapel", false, "A letter addressed to the patient, unopened."},
			{"Parking lot", false, "A car left with its engine warm at 03:00."},
		},
		roles: []string{"Night nurse", "Resident", "Visitor", "Pharmacist", "Porter", "Chaplain"},
	},
	{
		variant: game_constants.VARIANT_NEON_MALL,
		title:   "Shopping Mall, Neon Shadows",
		story:   "The mall owner is found behind the neon sign of the food court after the lights went out.",
		places: []seedPlace{
			{"Food court", true, "The breaker was switched off, not tripped."},
			{"Jewellery shop", false, "A display case opened with a key."},
			{"Security office", false, "The recording skips eleven minutes."},
			{"Loading dock", false, "A delivery signed for by someone who was off that day."},
			{"Cinema", false, "Two tickets for the last screening, one unused."},
			{"Parking garage", false, "A parking ticket stamped at the wrong exit."},
		},
		roles: []string{"Shop owner", "Guard", "Electrician", "Manager", "Delivery driver", "Cinema clerk"},
	},
}

// Seed inserts the built-in case files. Existing rows are left alone.
func Seed(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, c := range seedCases {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&postgres.CaseFile{
				Variant: c.variant,
				Title:   c.title,
				Story:   c.story,
			}).Error; err != nil {
				return err
			}

			var existing int64
			if err := tx.Model(&postgres.Place{}).Where("variant = ?", c.variant).Count(&existing).Error; err != nil {
				return err
			}
			if existing == 0 {
				for i, p := range c.places {
					details, err := json.Marshal(map[string]string{"clue": p.clue})
					if err != nil {
						return err
					}
					if err := tx.Create(&postgres.Place{
						Variant:   c.variant,
						Name:      p.name,
						IsCrime:   p.isCrime,
						SortOrder: i,
						Details:   datatypes.JSON(details),
					}).Error; err != nil {
						return err
					}
				}
			}

			for i, role := range c.roles {
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&postgres.CharacterSecret{
					Variant: c.variant,
					Seat:    i + 1,
					Role:    role,
					Secret:  "You were near the " + c.places[(i+1)%len(c.places)].name + " and told nobody.",
				}).Error; err != nil {
					return err
				}
			}
		}
		log.Info().Msgf("[CONTENT] Seeded %d case files", len(seedCases))
		return nil
	})
}
