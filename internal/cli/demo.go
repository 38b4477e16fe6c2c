package cli

import "pathkey-service/internal/domain"

// demoCatalog is the content served when no database is configured and the
// content loaded by the seed command.
type demoCatalog struct {
	careers  []domain.Career
	pathkeys []domain.Pathkey
	sets     []domain.QuestionSet
}

func sampleCatalog() demoCatalog {
	return demoCatalog{
		careers: []domain.Career{
			{ID: "registered-nurse", Name: "Registered Nurse", SectorID: "healthcare", ClusterID: "health-science"},
			{ID: "paramedic", Name: "Paramedic", SectorID: "healthcare", ClusterID: "health-science"},
			{ID: "software-developer", Name: "Software Developer", SectorID: "technology", ClusterID: "information-technology"},
		},
		pathkeys: []domain.Pathkey{
			{ID: "pk-registered-nurse", CareerID: "registered-nurse", Name: "Registered Nurse Pathkey", Rarity: "rare"},
			{ID: "pk-software-developer", CareerID: "software-developer", Name: "Software Developer Pathkey", Rarity: "common"},
		},
		sets: []domain.QuestionSet{
			{
				ID:       "nurse-basics",
				Title:    "Life on the ward",
				CareerID: "registered-nurse",
				Questions: []domain.Question{
					mcq("nurse-q1", "Who usually coordinates a ward shift?", domain.DriverPeople, "Charge nurse", "Hospital porter", "Visitor"),
					mcq("nurse-q2", "What does a care plan describe?", domain.DriverProcess, "How a patient is treated", "The hospital budget", "Staff parking"),
					mcq("nurse-q3", "Which cost grows fastest for a hospital?", domain.DriverProfits, "Staffing", "Stationery", "Signage"),
					mcq("nurse-q4", "What is a nurse's core service?", domain.DriverProduct, "Patient care", "Building repair", "Catering"),
					mcq("nurse-q5", "Who pays for most hospital care?", domain.DriverProceeds, "Insurers and public funds", "Visitors", "Nurses"),
					mcq("nurse-q6", "What sets the price of a clinic visit?", domain.DriverPricing, "Negotiated rates", "Weather", "Queue length"),
				},
			},
			{
				ID:       "healthcare-sector",
				Title:    "Around healthcare",
				SectorID: "healthcare",
				Questions: []domain.Question{
					mcq("hc-q1", "Which role responds to emergencies on site?", "", "Paramedic", "Accountant", "Architect"),
					mcq("hc-q2", "Where do most nurses work?", "", "Hospitals", "Banks", "Airports"),
				},
			},
			{
				ID:        "health-science-cluster",
				Title:     "Health science pathways",
				ClusterID: "health-science",
				Questions: []domain.Question{
					mcq("hs-q1", "Which subject matters most for health science?", "", "Biology", "Geography", "Music"),
				},
			},
		},
	}
}

// mcq builds a one-point question whose first option is correct.
func mcq(id, prompt string, driver domain.BusinessDriver, correct string, wrong ...string) domain.Question {
	options := []domain.Option{{ID: id + "-a", Text: correct, Correct: true}}
	for i, w := range wrong {
		options = append(options, domain.Option{ID: id + "-" + string(rune('b'+i)), Text: w})
	}
	return domain.Question{ID: id, Prompt: prompt, Options: options, Points: 1, Driver: driver}
}
