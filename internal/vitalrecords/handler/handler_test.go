package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ddrc/internal/session"
	"ddrc/internal/taskqueue"
	"ddrc/internal/userflow"
	"ddrc/internal/vitalrecords/models"
	"ddrc/internal/vitalrecords/service"
	"ddrc/internal/vitalrecords/store"
	"ddrc/internal/web"
	"ddrc/pkg/testutil"
)

// recordingSessions remembers the last loaded session so tests can mark it
// as logged in.
type recordingSessions struct {
	*session.Manager
	last *session.Session
}

func (s *recordingSessions) Load(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	sess, err := s.Manager.Load(w, r)
	s.last = sess
	return sess, err
}

type HandlerSuite struct {
	suite.Suite
	router   *chi.Mux
	sessions *recordingSessions
	store    *store.InMemory
	tasks    *taskqueue.InMemory
	cookies  []*http.Cookie
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	renderer, err := web.NewRenderer()
	s.Require().NoError(err)

	s.store = store.NewInMemory()
	s.tasks = taskqueue.NewInMemory()
	s.sessions = &recordingSessions{Manager: session.NewManager(session.NewInMemory(), "test-signing-key")}
	flows := userflow.NewRegistry(&userflow.UserFlow{
		SystemName:       userflow.VitalRecords,
		EligibilityClaim: "fire",
	})
	svc := service.New(s.store, taskqueue.NewQueue(s.tasks, nil))

	s.router = chi.NewRouter()
	New(svc, s.sessions, flows, renderer, nil).Register(s.router)
	s.cookies = nil
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	rr := testutil.DoRequest(s.router, req)
	if cookies := rr.Result().Cookies(); len(cookies) > 0 {
		s.cookies = cookies
	}
	return rr
}

func (s *HandlerSuite) get(path string) *httptest.ResponseRecorder {
	return s.do(testutil.NewRequest(s.T(), http.MethodGet, path))
}

func (s *HandlerSuite) post(path string, values url.Values) *httptest.ResponseRecorder {
	return s.do(testutil.NewFormRequest(s.T(), path, values))
}

// login opens a session and grants it the verified eligibility claim.
func (s *HandlerSuite) login() {
	rr := s.get("/vital-records")
	s.Require().Equal(http.StatusOK, rr.Code)
	sess := s.sessions.last
	sess.Data.IDToken = "id-token"
	sess.Data.VerifiedClaims = "fire email_verified email:ada@example.com"
	s.Require().NoError(sess.Save(context.Background()))
}

func (s *HandlerSuite) start(fire string) uuid.UUID {
	rr := s.post("/vital-records/request", url.Values{"fire": {fire}})
	s.Require().Equal(http.StatusFound, rr.Code)
	location := rr.Header().Get("Location")
	s.Require().True(strings.HasSuffix(location, "/type"), location)
	id, err := uuid.Parse(strings.TrimSuffix(strings.TrimPrefix(location, "/vital-records/request/"), "/type"))
	s.Require().NoError(err)
	return id
}

func (s *HandlerSuite) step(id uuid.UUID, route string, values url.Values, next string) {
	rr := s.post("/vital-records/request/"+id.String()+"/"+route, values)
	s.Require().Equal(http.StatusFound, rr.Code, "step %s: %s", route, rr.Body.String())
	s.Require().Equal(next, rr.Header().Get("Location"), "step %s", route)
}

func orderValues() url.Values {
	return url.Values{
		"number_of_records": {"2"},
		"order_first_name":  {"Ada"},
		"order_last_name":   {"Lovelace"},
		"address":           {"1 Main St"},
		"city":              {"Pasadena"},
		"state":             {"CA"},
		"zip_code":          {"91101"},
		"email_address":     {"ada@example.com"},
		"phone_number":      {"6265550100"},
	}
}

func (s *HandlerSuite) TestIndexResetsSessionAndDisablesCaching() {
	rr := s.get("/vital-records")

	s.Equal(http.StatusOK, rr.Code)
	s.Equal("no-cache, no-store, must-revalidate", rr.Header().Get("Cache-Control"))
	s.Contains(rr.Body.String(), "Replacement records")
	s.Equal(userflow.VitalRecords, s.sessions.last.Data.UserFlow)
}

func (s *HandlerSuite) TestLoginRedirectsToOAuth() {
	rr := s.get("/vital-records/login")
	testutil.AssertRedirect(s.T(), rr, "/oauth/login")
}

func (s *HandlerSuite) TestStartRequiresEligibility() {
	rr := s.get("/vital-records/request")
	testutil.AssertRedirect(s.T(), rr, "/vital-records/login")
}

func (s *HandlerSuite) TestStartRejectsUnknownFire() {
	s.login()
	rr := s.post("/vital-records/request", url.Values{"fire": {"volcano"}})

	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "Select a valid choice.")
}

func (s *HandlerSuite) TestBirthRequestFlow() {
	s.login()
	id := s.start("eaton")
	base := "/vital-records/request/" + id.String()

	rr := s.get(base + "/type")
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), `href="/vital-records/request"`)

	s.step(id, "type", url.Values{"type": {"birth"}}, base+"/statement")
	s.step(id, "statement", url.Values{"relationship": {"self"}, "legal_attestation": {"Ada Lovelace"}}, base+"/name")
	s.step(id, "name", url.Values{"first_name": {"Ada"}, "last_name": {"Byron"}}, base+"/county")
	s.step(id, "county", url.Values{"county_of_event": {"Los Angeles"}}, base+"/date")
	s.step(id, "date", url.Values{"month": {"12"}, "day": {"10"}, "year": {"1990"}}, base+"/parents")
	s.step(id, "parents", url.Values{"person_1_first_name": {"Anne"}, "person_1_last_name": {"Milbanke"}}, base+"/order")

	rr = s.get(base + "/order")
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), `value="ada@example.com"`, "order form is prefilled from the verified email")
	s.step(id, "order", orderValues(), base+"/submit")

	rr = s.get(base + "/submit")
	s.Equal(http.StatusOK, rr.Code)
	body := rr.Body.String()
	s.Contains(body, "Replacement birth record")
	s.Contains(body, "The following information will be used to search for your replacement record.")
	s.Contains(body, "12/10/1990")
	s.Contains(body, "Step 6 of 6")

	s.step(id, "submit", url.Values{}, base)

	stored, err := s.store.Get(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, stored.Status)

	rr = s.get(base)
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "Your request has been submitted")

	stored, err = s.store.Get(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(models.StatusEnqueued, stored.Status)
	tasks, err := s.tasks.List(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(tasks, 1)
	s.Equal(service.TaskPackage, tasks[0].Name)

	rr = s.post(base+"/submit", url.Values{})
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "This request has already been submitted.")

	rr = s.get(base)
	s.Equal(http.StatusConflict, rr.Code)
}

func (s *HandlerSuite) TestDeathRequestFlow() {
	s.login()
	id := s.start("palisades")
	base := "/vital-records/request/" + id.String()

	s.step(id, "type", url.Values{"type": {"death"}}, base+"/statement")

	rr := s.post(base+"/statement", url.Values{"relationship": {"self"}, "legal_attestation": {"Ada Lovelace"}})
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "Select a valid choice.")
	s.step(id, "statement", url.Values{"relationship": {"surviving_next_of_kin"}, "legal_attestation": {"Ada Lovelace"}}, base+"/name")

	s.step(id, "name", url.Values{"first_name": {"Charles"}, "middle_name": {"Percy"}, "last_name": {"Babbage"}}, base+"/county")
	s.step(id, "county", url.Values{"county_of_event": {"Los Angeles"}}, base+"/date")
	s.step(id, "date", url.Values{"month": {"1"}, "day": {"8"}, "year": {"2025"}}, base+"/dob")
	s.step(id, "dob", url.Values{"month": {"12"}, "day": {"26"}, "year": {"1941"}}, base+"/parent")
	s.step(id, "parent", url.Values{"person_1_first_name": {"Betty"}, "person_1_last_name": {"Plumleigh"}}, base+"/order")
	s.step(id, "order", orderValues(), base+"/submit")

	rr = s.get(base + "/submit")
	s.Equal(http.StatusOK, rr.Code)
	body := rr.Body.String()
	s.Contains(body, "Replacement death record")
	s.Contains(body, "This is the information that will be used to search for the replacement death record.")
	s.Contains(body, "Charles Percy Babbage")
	s.Contains(body, "01/08/2025")
	s.Contains(body, "12/26/1941")
	s.Contains(body, "Betty Plumleigh")
	s.Contains(body, "Step 7 of 7")

	s.step(id, "submit", url.Values{}, base)

	rr = s.get(base)
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "Your request has been submitted")

	stored, err := s.store.Get(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(models.StatusEnqueued, stored.Status)
	s.Equal(models.TypeDeath, stored.Type)
	s.Equal("surviving_next_of_kin", stored.Relationship)
	s.Require().NotNil(stored.DateOfBirth)
	s.Equal(1941, stored.DateOfBirth.Year())
	s.Equal("Babbage", stored.LastName)

	rr = s.post(base+"/name", url.Values{"first_name": {"Ada"}, "last_name": {"Byron"}})
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "This request has already been submitted.")
	stored, err = s.store.Get(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(models.StatusEnqueued, stored.Status)
	s.Equal("Babbage", stored.LastName)

	tasks, err := s.tasks.List(context.Background(), 10)
	s.Require().NoError(err)
	s.Len(tasks, 1)
}

func (s *HandlerSuite) TestMarriageConfirmPage() {
	s.login()
	id := s.start("palisades")
	base := "/vital-records/request/" + id.String()
	s.step(id, "type", url.Values{"type": {"marriage"}}, base+"/statement")

	rr := s.get(base + "/submit")
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "This is the information that will be used to search for the replacement marriage record.")
	s.Contains(rr.Body.String(), "Step 5 of 5")
}

func (s *HandlerSuite) TestStepValidationErrorsRerender() {
	s.login()
	id := s.start("eaton")
	base := "/vital-records/request/" + id.String()
	s.step(id, "type", url.Values{"type": {"death"}}, base+"/statement")

	rr := s.post(base+"/name", url.Values{"first_name": {"Ada"}})
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "This field is required.")

	rr = s.post(base+"/date", url.Values{"month": {"2"}, "day": {"30"}, "year": {"2000"}})
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "Enter a valid date.")
}

func (s *HandlerSuite) TestStatementWithoutTypeGoesBackToType() {
	s.login()
	id := s.start("eaton")
	rr := s.get("/vital-records/request/" + id.String() + "/statement")
	testutil.AssertRedirect(s.T(), rr, "/vital-records/request/"+id.String()+"/type")
}

func (s *HandlerSuite) TestStepOfOtherTypeIsForbidden() {
	s.login()
	id := s.start("eaton")
	base := "/vital-records/request/" + id.String()
	s.step(id, "type", url.Values{"type": {"birth"}}, base+"/statement")

	s.Equal(http.StatusForbidden, s.get(base+"/dob").Code)
	s.Equal(http.StatusForbidden, s.get(base+"/parent").Code)
	s.Equal(http.StatusNotFound, s.get(base+"/unknown").Code)
}

func (s *HandlerSuite) TestRequestOfAnotherSessionIsForbidden() {
	s.login()
	s.start("eaton")

	rr := s.get("/vital-records/request/" + uuid.NewString() + "/type")
	s.Equal(http.StatusForbidden, rr.Code)
}

func (s *HandlerSuite) TestSubmittedBeforeSubmitIsConflict() {
	s.login()
	id := s.start("eaton")

	rr := s.get("/vital-records/request/" + id.String())
	s.Equal(http.StatusConflict, rr.Code)

	tasks, err := s.tasks.List(context.Background(), 10)
	s.Require().NoError(err)
	s.Empty(tasks)
}
