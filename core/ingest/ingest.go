// Package ingest creates users and researches from the spreadsheets exported by the faculty.
package ingest

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/research"
	"github.com/trezcool/investiga/core/role"
	"github.com/trezcool/investiga/core/user"
)

type Kind string

const (
	KindStudents    Kind = "students"
	KindResearchers Kind = "researchers"
	KindResearch    Kind = "research"
)

var (
	ErrUnknownKind = core.NewError(core.KindNotFound, "unknown ingestion kind")

	sheets = map[Kind]string{
		KindStudents:    "Estudiantes",
		KindResearchers: "Investigadores",
		KindResearch:    "Publicaciones",
	}

	accents      = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n")
	nonWordRegex = regexp.MustCompile(`[^\w]+`)
	listSepRegex = regexp.MustCompile(`\s*[;,\n]\s*`)
)

func ParseKind(s string) (Kind, error) {
	k := Kind(core.CleanString(s, true /* lower */))
	if _, ok := sheets[k]; !ok {
		return "", ErrUnknownKind
	}
	return k, nil
}

type (
	RowError struct {
		Row   int    `json:"row"`
		Error string `json:"error"`
	}

	Report struct {
		Created int        `json:"created"`
		Skipped int        `json:"skipped"`
		Errors  []RowError `json:"errors"`
	}

	Service struct {
		users      *user.Service
		researches *research.Service
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(users *user.Service, researches *research.Service, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{users: users, researches: researches, validate: validate, translator: translator}
}

func (rep *Report) fail(row int, msg string) {
	rep.Errors = append(rep.Errors, RowError{Row: row, Error: msg})
}

// Ingest reads the sheet of kind from the xlsx workbook r.
// Invalid rows are reported, only unreadable workbooks and storage failures are errors.
func (svc *Service) Ingest(ctx context.Context, kind Kind, r io.Reader) (Report, error) {
	switch kind {
	case KindStudents:
		return svc.Students(ctx, r)
	case KindResearchers:
		return svc.Researchers(ctx, r)
	case KindResearch:
		return svc.Research(ctx, r)
	}
	return Report{}, ErrUnknownKind
}

func (svc *Service) Students(ctx context.Context, r io.Reader) (Report, error) {
	return svc.ingestUsers(ctx, r, sheets[KindStudents], role.Student)
}

func (svc *Service) Researchers(ctx context.Context, r io.Reader) (Report, error) {
	return svc.ingestUsers(ctx, r, sheets[KindResearchers], role.Investigator)
}

func (svc *Service) ingestUsers(ctx context.Context, r io.Reader, sheet string, roleID int) (Report, error) {
	rows, err := readSheet(r, sheet)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Errors: []RowError{}}
	for _, row := range rows {
		if row.blank() {
			continue
		}
		email := core.CleanString(row.get("email"), true /* lower */)
		if _, err := svc.users.GetByEmail(ctx, email); err == nil {
			rep.Skipped++
			continue
		} else if email != "" && errors.Cause(err) != user.ErrNotFound {
			return rep, err
		}

		rid := roleID
		nu := user.NewUser{
			Email:          email,
			Username:       row.get("username"),
			Names:          row.get("names"),
			LastName:       row.get("lastName"),
			Rut:            row.get("rut"),
			PhoneNumber:    row.get("phoneNumber"),
			Gender:         row.get("gender"),
			AcademicDegree: row.get("academicDegree"),
			Institution:    row.get("institution"),
			RoleID:         &rid,
			ResearchLines:  splitList(row.get("researchLines")),
			TutorEmail:     row.get("tutorEmail"),
			TutorName:      row.get("tutorName"),
		}
		if strings.TrimSpace(nu.Username) == "" {
			nu.Username = usernameFrom(email)
		}
		if err := nu.Validate(ctx, svc.validate, svc.users); err != nil {
			if core.IsKind(err, core.KindBadData) {
				rep.fail(row.num, svc.message(err))
				continue
			}
			return rep, err
		}
		if _, err := svc.users.Create(ctx, nu); err != nil {
			return rep, err
		}
		rep.Created++
	}
	return rep, nil
}

// Research creates the publications of the sheet, linked to the users listed by email.
func (svc *Service) Research(ctx context.Context, r io.Reader) (Report, error) {
	rows, err := readSheet(r, sheets[KindResearch])
	if err != nil {
		return Report{}, err
	}
	rep := Report{Errors: []RowError{}}
	for _, row := range rows {
		if row.blank() {
			continue
		}
		nr := research.NewResearch{
			DOI:     row.get("doi"),
			Title:   row.get("title"),
			Authors: splitList(row.get("authors")),
			Venue:   row.get("venue"),
			Link:    row.get("link"),
			PDF:     row.get("pdf"),
		}
		var convErr error
		nr.Year, convErr = row.getInt("year", convErr)
		nr.Month, convErr = row.getInt("month", convErr)
		nr.FirstPage, convErr = row.getInt("firstPage", convErr)
		nr.LastPage, convErr = row.getInt("lastPage", convErr)
		if convErr != nil {
			rep.fail(row.num, convErr.Error())
			continue
		}

		var unknown []string
		for _, email := range splitList(row.get("emails")) {
			usr, err := svc.users.GetByEmail(ctx, email)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					unknown = append(unknown, email)
					continue
				}
				return rep, err
			}
			nr.UserIDs = append(nr.UserIDs, usr.ID)
		}
		if len(unknown) > 0 {
			rep.fail(row.num, "unknown users: "+strings.Join(unknown, ", "))
			continue
		}

		if err := nr.Validate(svc.validate); err != nil {
			rep.fail(row.num, svc.message(err))
			continue
		}
		dup, err := svc.doiExists(ctx, nr.DOI)
		if err != nil {
			return rep, err
		}
		if dup {
			rep.Skipped++
			continue
		}
		if _, err := svc.researches.Create(ctx, nr); err != nil {
			if core.IsKind(err, core.KindBadData) {
				rep.fail(row.num, svc.message(err))
				continue
			}
			return rep, err
		}
		rep.Created++
	}
	return rep, nil
}

func (svc *Service) doiExists(ctx context.Context, doi string) (bool, error) {
	if doi == "" {
		return false, nil
	}
	_, err := svc.researches.GetByDOI(ctx, doi)
	switch errors.Cause(err) {
	case nil:
		return true, nil
	case research.ErrNotFound:
		return false, nil
	}
	return false, errors.Wrap(err, "finding research by doi")
}

// message renders err the way the API reports field errors.
func (svc *Service) message(err error) string {
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		msgs := make([]string, 0, len(e))
		for _, fe := range e {
			msg := fe.Error()
			if svc.translator != nil {
				msg = fe.Translate(svc.translator)
			}
			msgs = append(msgs, fe.Field()+": "+msg)
		}
		return strings.Join(msgs, "; ")
	case *core.ValidationError:
		msgs := make([]string, 0, len(e.Fields))
		for _, fe := range e.Fields {
			msgs = append(msgs, fe.Field+": "+fe.Error)
		}
		if len(msgs) == 0 {
			return e.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}

// header aliases, keys are normalized with normalizeHeader
var columns = map[string]string{
	"email":                   "email",
	"correo":                  "email",
	"correo electronico":      "email",
	"username":                "username",
	"usuario":                 "username",
	"nombres":                 "names",
	"nombre":                  "names",
	"names":                   "names",
	"apellido":                "lastName",
	"apellidos":               "lastName",
	"last name":               "lastName",
	"rut":                     "rut",
	"telefono":                "phoneNumber",
	"phone":                   "phoneNumber",
	"genero":                  "gender",
	"gender":                  "gender",
	"grado academico":         "academicDegree",
	"academic degree":         "academicDegree",
	"institucion":             "institution",
	"institution":             "institution",
	"lineas de investigacion": "researchLines",
	"research lines":          "researchLines",
	"email tutor":             "tutorEmail",
	"correo tutor":            "tutorEmail",
	"nombre tutor":            "tutorName",
	"tutor":                   "tutorName",
	"doi":                     "doi",
	"titulo":                  "title",
	"title":                   "title",
	"ano":                     "year",
	"year":                    "year",
	"mes":                     "month",
	"month":                   "month",
	"autores":                 "authors",
	"authors":                 "authors",
	"pagina inicial":          "firstPage",
	"first page":              "firstPage",
	"pagina final":            "lastPage",
	"last page":               "lastPage",
	"revista":                 "venue",
	"venue":                   "venue",
	"link":                    "link",
	"enlace":                  "link",
	"pdf":                     "pdf",
	"emails":                  "emails",
	"usuarios":                "emails",
	"correos":                 "emails",
}

func normalizeHeader(h string) string {
	return accents.Replace(strings.Join(strings.Fields(strings.ToLower(h)), " "))
}

type sheetRow struct {
	num    int
	values map[string]string
}

func (r sheetRow) get(col string) string {
	return strings.TrimSpace(r.values[col])
}

// getInt parses col, keeping the first error met.
func (r sheetRow) getInt(col string, prevErr error) (int, error) {
	s := r.get(col)
	if s == "" {
		return 0, prevErr
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if prevErr == nil {
			prevErr = fmt.Errorf("%s: %q is not a number", col, s)
		}
		return 0, prevErr
	}
	return int(f), prevErr
}

func (r sheetRow) blank() bool {
	for _, v := range r.values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// readSheet returns the rows below the header row of sheet, keyed by column.
func readSheet(r io.Reader, sheet string) ([]sheetRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, core.NewFieldError("file", "not a valid xlsx workbook")
	}
	defer f.Close()

	name := ""
	for _, s := range f.GetSheetList() {
		if normalizeHeader(s) == normalizeHeader(sheet) {
			name = s
			break
		}
	}
	if name == "" {
		return nil, core.NewFieldError("file", fmt.Sprintf("sheet %q not found", sheet))
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %q", name)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = columns[normalizeHeader(h)]
	}
	result := make([]sheetRow, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		row := sheetRow{num: i + 2, values: make(map[string]string, len(header))}
		for j, cell := range cells {
			if j < len(header) && header[j] != "" {
				row.values[header[j]] = cell
			}
		}
		result = append(result, row)
	}
	return result, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return core.CleanStrings(listSepRegex.Split(s, -1))
}

func usernameFrom(email string) string {
	local := strings.SplitN(email, "@", 2)[0]
	return strings.Trim(nonWordRegex.ReplaceAllString(accents.Replace(local), "_"), "_")
}
