package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/announcement"
	"github.com/trezcool/investiga/core/period"
	"github.com/trezcool/investiga/core/research"
	"github.com/trezcool/investiga/core/role"
	"github.com/trezcool/investiga/core/scholarship"
	"github.com/trezcool/investiga/core/thesis"
	"github.com/trezcool/investiga/core/user"
)

func createUser(t *testing.T, repo user.Repository, uname string, roleID *int) user.User {
	t.Helper()
	usr, err := repo.CreateUser(context.Background(), user.User{
		Email:     uname + "@uni.cl",
		Username:  uname,
		Names:     uname,
		RoleID:    roleID,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return usr
}

func TestDeleteRole_NullsUserRole(t *testing.T) {
	ctx := context.Background()
	db := Open()
	roles, users := NewRoleRepository(db), NewUserRepository(db)

	r, err := roles.CreateRole(ctx, role.Role{AccountScope: "tutor"})
	require.NoError(t, err)
	assert.Equal(t, role.Investigator+1, r.ID)

	usr := createUser(t, users, "ana", &r.ID)
	require.NoError(t, roles.DeleteRole(ctx, r.ID))

	usr, err = users.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Nil(t, usr.RoleID)

	_, err = roles.GetRole(ctx, r.ID)
	assert.Equal(t, role.ErrNotFound, err)
}

func TestDeleteResearch_KeepsUsers(t *testing.T) {
	ctx := context.Background()
	db := Open()
	users, researches := NewUserRepository(db), NewResearchRepository(db)

	ana := createUser(t, users, "ana", nil)
	res, err := researches.CreateResearch(ctx, research.Research{Title: "Redes", Year: 2024, UserIDs: []int{ana.ID}})
	require.NoError(t, err)
	assert.Equal(t, []int{ana.ID}, res.UserIDs)

	require.NoError(t, researches.DeleteResearch(ctx, res.ID))
	_, err = users.GetUser(ctx, user.GetFilter{ID: ana.ID})
	assert.NoError(t, err)
	assert.Empty(t, db.userResearches)
}

func TestDeleteUser_References(t *testing.T) {
	ctx := context.Background()
	db := Open()
	users, researches := NewUserRepository(db), NewResearchRepository(db)
	theses, anns := NewThesisRepository(db), NewAnnouncementRepository(db)

	ana := createUser(t, users, "ana", nil)
	res, err := researches.CreateResearch(ctx, research.Research{Title: "Redes", Year: 2024, UserIDs: []int{ana.ID}})
	require.NoError(t, err)
	th, err := theses.CreateThesis(ctx, thesis.Thesis{UserID: &ana.ID, Title: "Tesis", Status: core.StatusPending})
	require.NoError(t, err)
	a, err := anns.CreateAnnouncement(ctx, announcement.Announcement{Title: "Beca"})
	require.NoError(t, err)
	_, err = anns.AddInterest(ctx, announcement.Interest{AnnouncementID: a.ID, UserID: ana.ID, Message: "hola"})
	require.NoError(t, err)

	require.NoError(t, users.DeleteUser(ctx, ana.ID))

	th, err = theses.GetThesis(ctx, th.ID)
	require.NoError(t, err)
	assert.Nil(t, th.UserID)

	res, err = researches.GetResearch(ctx, res.ID)
	require.NoError(t, err)
	assert.Empty(t, res.UserIDs)

	ins, err := anns.ListInterests(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, ins)
}

func TestQueryUsers_FiltersBeforePaging(t *testing.T) {
	ctx := context.Background()
	db := Open()
	users := NewUserRepository(db)

	student := role.Student
	for _, uname := range []string{"ana", "bea", "carla", "dora", "eva", "flor", "gina"} {
		createUser(t, users, uname, &student)
	}
	createUser(t, users, "hugo", nil)

	filter := user.QueryFilter{RoleID: role.Student, PageRequest: core.PageRequest{Page: 2, PageSize: 3}}
	page, total, err := users.QueryUsers(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, page, 3)
	assert.Equal(t, "dora", page[0].Username)

	filter.Page = 3
	page, _, err = users.QueryUsers(ctx, filter)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "gina", page[0].Username)
}

func TestReviewScholarship_ConsumesBudget(t *testing.T) {
	ctx := context.Background()
	db := Open()
	users, periods, schs := NewUserRepository(db), NewPeriodRepository(db), NewScholarshipRepository(db)

	ana := createUser(t, users, "ana", nil)
	p, err := periods.CreatePeriod(ctx, period.ApplicationPeriod{
		Title:             "Beca 2025",
		StatusApplication: period.Open,
		TotalBudget:       core.Budget{MasterDegree: 100},
	})
	require.NoError(t, err)

	newScholarship := func(amount float64) scholarship.Scholarship {
		s, err := schs.CreateScholarship(ctx, scholarship.Scholarship{
			UserID:          &ana.ID,
			PeriodID:        &p.ID,
			DegreeLevel:     core.DegreeMaster,
			Status:          core.StatusPending,
			StatusTutor:     core.StatusPending,
			AmountRequested: amount,
		})
		require.NoError(t, err)
		return s
	}

	s := newScholarship(60)
	s.Status, s.AmountGranted = core.StatusApproved, 60
	_, err = schs.ReviewScholarship(ctx, s)
	require.NoError(t, err)

	_, err = schs.ReviewScholarship(ctx, s)
	assert.Equal(t, scholarship.ErrAlreadyReviewed, err, "approving twice")

	s2 := newScholarship(50)
	s2.Status, s2.AmountGranted = core.StatusApproved, 50
	_, err = schs.ReviewScholarship(ctx, s2)
	assert.Equal(t, period.ErrBudgetExceeded, err)

	s2, err = schs.GetScholarship(ctx, s2.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, s2.Status, "failed review leaves the scholarship pending")

	p, err = periods.GetPeriod(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Budget{MasterDegree: 60}, p.UsedBudget)
}

func TestUpdateScholarship_Files(t *testing.T) {
	ctx := context.Background()
	db := Open()
	schs := NewScholarshipRepository(db)

	s, err := schs.CreateScholarship(ctx, scholarship.Scholarship{
		DegreeLevel: core.DegreeBachelor,
		Status:      core.StatusPending,
		Files:       []core.File{{ID: "a", Key: "k/a"}, {ID: "b", Key: "k/b"}},
	})
	require.NoError(t, err)

	s, err = schs.UpdateScholarship(ctx, s, []string{"a"}, []core.File{{ID: "c", Key: "k/c"}})
	require.NoError(t, err)
	require.Len(t, s.Files, 2)
	assert.Equal(t, "b", s.Files[0].ID)
	assert.Equal(t, "c", s.Files[1].ID)
}

func TestUpdateScholarship_KeepsTutorStatus(t *testing.T) {
	ctx := context.Background()
	schs := NewScholarshipRepository(Open())

	s, err := schs.CreateScholarship(ctx, scholarship.Scholarship{
		DegreeLevel: core.DegreeBachelor,
		Status:      core.StatusPending,
		StatusTutor: core.StatusPending,
	})
	require.NoError(t, err)
	stale := s

	s.StatusTutor = core.StatusApproved
	s, err = schs.TutorReviewScholarship(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, core.StatusApproved, s.StatusTutor)

	stale.BankName = "Banco Estado"
	s, err = schs.UpdateScholarship(ctx, stale, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Banco Estado", s.BankName)
	assert.Equal(t, core.StatusApproved, s.StatusTutor, "a profile update never overwrites the tutor decision")

	_, err = schs.TutorReviewScholarship(ctx, scholarship.Scholarship{ID: 99})
	assert.Equal(t, scholarship.ErrNotFound, err)
}

func TestUpdatePeriod_BelowUsedBudget(t *testing.T) {
	ctx := context.Background()
	periods := NewPeriodRepository(Open())

	p, err := periods.CreatePeriod(ctx, period.ApplicationPeriod{
		Title:             "Beca 2025",
		StatusApplication: period.Open,
		TotalBudget:       core.Budget{MasterDegree: 100},
	})
	require.NoError(t, err)
	p, err = periods.ConsumeBudget(ctx, p.ID, core.DegreeMaster, 80)
	require.NoError(t, err)

	// a stale copy read before the budget was granted
	stale := p
	stale.UsedBudget = core.Budget{}
	stale.TotalBudget.MasterDegree = 50
	_, err = periods.UpdatePeriod(ctx, stale)
	assert.Equal(t, period.ErrBelowUsed, err)

	stale.TotalBudget.MasterDegree = 80
	got, err := periods.UpdatePeriod(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.UsedBudget.MasterDegree)
}
