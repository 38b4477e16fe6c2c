package http

import (
	"context"
	"net/http"
	"time"

	"pathkey-service/internal/domain"
	"pathkey-service/internal/pathkey"
)

// StatusReader reads a student's pathkey progress.
type StatusReader interface {
	Status(ctx context.Context, studentID, careerID string) (pathkey.Status, error)
}

type driverView struct {
	Driver         domain.BusinessDriver `json:"driver"`
	State          domain.DriverState    `json:"state"`
	ChunkQuestions int                   `json:"chunkQuestions"`
	ChunkCorrect   int                   `json:"chunkCorrect"`
}

type statusView struct {
	StudentID     string             `json:"studentId"`
	CareerID      string             `json:"careerId"`
	CareerMastery bool               `json:"careerMastery"`
	SectionTwo    bool               `json:"sectionTwo"`
	SectionTwoVia domain.MasteryType `json:"sectionTwoVia,omitempty"`
	SectionThree  bool               `json:"sectionThree"`
	IndustrySets  int                `json:"industrySets"`
	ClusterSets   int                `json:"clusterSets"`
	Drivers       []driverView       `json:"drivers"`
	UpdatedAt     *time.Time         `json:"updatedAt,omitempty"`
}

// StatusHandler serves GET /students/{studentId}/careers/{careerId}/pathkey.
func StatusHandler(reader StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := r.PathValue("studentId")
		careerID := r.PathValue("careerId")
		st, err := reader.Status(r.Context(), studentID, careerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		view := statusView{
			StudentID:     studentID,
			CareerID:      careerID,
			CareerMastery: st.Record.CareerMasteryUnlocked,
			SectionTwo:    st.Record.SectionTwoUnlocked(),
			SectionTwoVia: st.Record.SectionTwoVia,
			SectionThree:  st.Record.BusinessDriverMasteryUnlocked,
			IndustrySets:  st.Industry,
			ClusterSets:   st.Cluster,
			Drivers:       make([]driverView, 0, len(st.Drivers)),
		}
		if st.Found {
			view.UpdatedAt = &st.Record.UpdatedAt
		}
		for _, p := range st.Drivers {
			view.Drivers = append(view.Drivers, driverView{
				Driver:         p.Driver,
				State:          p.State(),
				ChunkQuestions: p.ChunkQuestions,
				ChunkCorrect:   p.ChunkCorrect,
			})
		}
		writeJSON(w, http.StatusOK, view)
	}
}
