package postboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type DBSeeder interface {
	Seed(document string, data *godog.Table) error
}

// TestSuite drives HTTP scenarios against Router, or against BaseURL when it is set.
type TestSuite struct {
	T           *testing.T
	Router      *gin.Engine
	Server      *Server
	Resp        *http.Response
	RespBody    []byte
	Storage     map[string]string
	RequestBody []byte
	BaseURL     string
	DbSeeders   map[string]DBSeeder
	// TokenSecret and TokenScopes are used to sign tokens for authenticated steps.
	TokenSecret string
	TokenScopes []string
	// Reset runs before every scenario, typically to empty the store.
	Reset func()
}

type TestLogger struct {
	T *testing.T
}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

func (ts *TestSuite) RegisterDBSeeder(document string, seeder DBSeeder) {
	if ts.DbSeeders == nil {
		ts.DbSeeders = make(map[string]DBSeeder)
	}
	ts.DbSeeders[document] = seeder
}

func (ts *TestSuite) SetBaseURL(baseURL string) {
	ts.BaseURL = baseURL
}

func (ts *TestSuite) InitializeTestSuite(ctx *godog.TestSuiteContext) {
	ctx.BeforeSuite(func() {
		ts.Storage = make(map[string]string)
	})
}

func (ts *TestSuite) InitializeScenario(ctx *godog.ScenarioContext) {
	ctx.BeforeScenario(func(sc *godog.Scenario) {
		ts.Resp = nil
		ts.RespBody = nil
		ts.RequestBody = nil
		ts.Storage = make(map[string]string)
		if ts.Reset != nil {
			ts.Reset()
		}
	})

	ctx.Step(`^document "([^"]*)" has the following items$`, ts.documentHasTheFollowingItems)
	ctx.Step(`^I am authenticated as user (\d+)$`, ts.iAmAuthenticatedAsUser)
	ctx.Step(`^I am not authenticated$`, ts.iAmNotAuthenticated)
	ctx.Step(`^I send a (GET|DELETE) request to "([^"]*)"$`, ts.iSendARequestTo)
	ctx.Step(`^I send a (POST|PATCH|PUT) request to "([^"]*)" with body$`, ts.iSendARequestToWithBody)
	ctx.Step(`^I send a (POST|PATCH|PUT) request to "([^"]*)" with fields$`, ts.iSendARequestToWithFields)
	ctx.Step(`^the response status should be (\d+)$`, ts.theResponseStatusShouldBe)
	ctx.Step(`^the response "([^"]*)" field is stored as "([^"]*)"$`, ts.theResponseFieldIsStoredAs)
	ctx.Step(`^the response "([^"]*)" field should be "([^"]*)"$`, ts.theResponseFieldShouldBe)
	ctx.Step(`^the response "([^"]*)" field should have (\d+) items$`, ts.theResponseFieldShouldHaveItems)
	ctx.Step(`^the response should contain "([^"]*)"$`, ts.theResponseShouldContain)
	ctx.Step(`^the response "([^"]*)" field should contain an item with$`, ts.theResponseFieldShouldContainAnItemWith)
}

func (ts *TestSuite) documentHasTheFollowingItems(document string, data *godog.Table) error {
	seeder, ok := ts.DbSeeders[document]
	if !ok {
		return fmt.Errorf("no seeder registered for document %s", document)
	}
	return seeder.Seed(document, data)
}

func (ts *TestSuite) iAmAuthenticatedAsUser(userID int64) error {
	token, err := GenerateAccessToken(ts.TokenSecret, userID, ts.TokenScopes, time.Hour)
	if err != nil {
		return err
	}
	ts.Storage["authToken"] = token
	return nil
}

func (ts *TestSuite) iAmNotAuthenticated() error {
	delete(ts.Storage, "authToken")
	return nil
}

func (ts *TestSuite) iSendARequestTo(method, path string) error {
	return ts.send(method, path, nil)
}

func (ts *TestSuite) iSendARequestToWithBody(method, path string, body *godog.DocString) error {
	ts.RequestBody = []byte(ts.expand(body.Content))
	return ts.send(method, path, ts.RequestBody)
}

func (ts *TestSuite) iSendARequestToWithFields(method, path string, fields *godog.Table) error {
	var err error
	ts.RequestBody, err = ts.parseDataTableToJSON(fields)
	if err != nil {
		return err
	}
	return ts.send(method, path, ts.RequestBody)
}

func (ts *TestSuite) send(method, path string, body []byte) error {
	url := ts.expand(path)
	if ts.BaseURL != "" {
		url = ts.BaseURL + url
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token, ok := ts.Storage["authToken"]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if ts.BaseURL != "" {
		client := &http.Client{}
		ts.Resp, err = client.Do(req)
		if err != nil {
			return err
		}
	} else {
		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)
		ts.Resp = w.Result()
	}
	defer ts.Resp.Body.Close()

	ts.RespBody, err = io.ReadAll(ts.Resp.Body)
	return err
}

// expand replaces {key} placeholders with values previously stored from responses.
func (ts *TestSuite) expand(s string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := ts.Storage[match[1:len(match)-1]]; ok {
			return val
		}
		return match
	})
}

func (ts *TestSuite) theResponseStatusShouldBe(status int) error {
	if ts.Resp == nil {
		return fmt.Errorf("no request has been sent")
	}
	if !assert.Equal(ts.T, status, ts.Resp.StatusCode, string(ts.RespBody)) {
		return fmt.Errorf("expected status %d, got %d: %s", status, ts.Resp.StatusCode, ts.RespBody)
	}
	return nil
}

func (ts *TestSuite) theResponseFieldIsStoredAs(field, key string) error {
	val, err := ts.responseField(field)
	if err != nil {
		return err
	}
	ts.Storage[key] = formatValue(val)
	return nil
}

func (ts *TestSuite) theResponseFieldShouldBe(field, expected string) error {
	val, err := ts.responseField(field)
	if err != nil {
		return err
	}
	actual := formatValue(val)
	expected = ts.expand(expected)
	if !assert.Equal(ts.T, expected, actual) {
		return fmt.Errorf("field %s: expected %q, got %q", field, expected, actual)
	}
	return nil
}

func (ts *TestSuite) theResponseFieldShouldHaveItems(field string, count int) error {
	val, err := ts.responseField(field)
	if err != nil {
		return err
	}
	items, ok := val.([]interface{})
	if !ok {
		return fmt.Errorf("field %s is not a list", field)
	}
	if !assert.Len(ts.T, items, count) {
		return fmt.Errorf("field %s: expected %d items, got %d", field, count, len(items))
	}
	return nil
}

func (ts *TestSuite) theResponseShouldContain(text string) error {
	text = ts.expand(text)
	if !assert.Contains(ts.T, string(ts.RespBody), text) {
		return fmt.Errorf("response does not contain %q: %s", text, ts.RespBody)
	}
	return nil
}

func (ts *TestSuite) theResponseFieldShouldContainAnItemWith(field string, body *godog.Table) error {
	expected, err := ts.parseDataTableToJSON(body)
	if err != nil {
		return err
	}
	var expectedMap map[string]interface{}
	if err := json.Unmarshal(expected, &expectedMap); err != nil {
		return err
	}

	val, err := ts.responseField(field)
	if err != nil {
		return err
	}
	candidates, ok := val.([]interface{})
	if !ok {
		candidates = []interface{}{val}
	}

	for _, candidate := range candidates {
		item, ok := candidate.(map[string]interface{})
		if ok && matches(item, expectedMap) {
			return nil
		}
	}
	assert.Fail(ts.T, "no matching item", "field %s has no item with %s", field, expected)
	return fmt.Errorf("field %s has no item with %s", field, expected)
}

func matches(item, expected map[string]interface{}) bool {
	for key, want := range expected {
		got, ok := item[key]
		if !ok || formatValue(got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

// responseField resolves a dotted path such as "data.0.id" in the JSON response body.
func (ts *TestSuite) responseField(path string) (interface{}, error) {
	var data interface{}
	if err := json.Unmarshal(ts.RespBody, &data); err != nil {
		return nil, err
	}
	current := data
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			val, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %s not found in response", path)
			}
			current = val
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("field %s not found in response", path)
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("field %s not found in response", path)
		}
	}
	return current, nil
}

func formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		raw, _ := json.Marshal(v)
		return string(raw)
	}
}

func (ts *TestSuite) parseDataTableToJSON(body *godog.Table) ([]byte, error) {
	if len(body.Rows) < 2 {
		return nil, fmt.Errorf("table must have at least two rows")
	}
	headers := body.Rows[0].Cells
	data := make(map[string]interface{})
	row := body.Rows[1]
	for j, cell := range row.Cells {
		data[headers[j].Value] = ts.expand(cell.Value)
	}
	return json.Marshal(data)
}

// GenericDBSeeder builds registered document structs from table rows using reflection
// and hands each one to Insert.
type GenericDBSeeder struct {
	Constructors map[string]func() interface{}
	Insert       func(ctx context.Context, document string, doc interface{}) error
}

func NewGenericDBSeeder(insert func(ctx context.Context, document string, doc interface{}) error) *GenericDBSeeder {
	return &GenericDBSeeder{
		Constructors: make(map[string]func() interface{}),
		Insert:       insert,
	}
}

func (gds *GenericDBSeeder) Register(name string, constructor func() interface{}) {
	gds.Constructors[name] = constructor
}

var timeType = reflect.TypeOf(time.Time{})

func (gds *GenericDBSeeder) Seed(document string, data *godog.Table) error {
	constructor, ok := gds.Constructors[document]
	if !ok {
		return fmt.Errorf("no constructor registered for document type: %s", document)
	}
	if len(data.Rows) == 0 {
		return nil
	}

	headers := data.Rows[0].Cells
	for i := 1; i < len(data.Rows); i++ {
		row := data.Rows[i]
		docInstance := constructor()

		val := reflect.ValueOf(docInstance).Elem()
		for j, cell := range row.Cells {
			fieldName := headers[j].Value
			field := fieldByJSONName(val, fieldName)
			if !field.IsValid() || !field.CanSet() {
				return fmt.Errorf("could not set field %s for document %s", fieldName, document)
			}
			if err := setField(field, cell.Value); err != nil {
				return fmt.Errorf("failed to parse field %s: %w", fieldName, err)
			}
		}
		if err := gds.Insert(context.Background(), document, docInstance); err != nil {
			return err
		}
	}
	return nil
}

func fieldByJSONName(val reflect.Value, name string) reflect.Value {
	if field := val.FieldByName(toPascalCase(name)); field.IsValid() {
		return field
	}
	typ := val.Type()
	for k := 0; k < typ.NumField(); k++ {
		tag := strings.Split(typ.Field(k).Tag.Get("json"), ",")[0]
		if tag == name {
			return val.Field(k)
		}
	}
	return reflect.Value{}
}

func setField(field reflect.Value, value string) error {
	if field.Kind() == reflect.Ptr {
		if value == "" {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		ptr := reflect.New(field.Type().Elem())
		if err := setField(ptr.Elem(), value); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	if field.Type() == timeType {
		t, err := parseTime(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if value == "" {
			field.SetInt(0)
			return nil
		}
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intVal)
	case reflect.Bool:
		if value == "" {
			field.SetBool(false)
			return nil
		}
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}

func parseTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", value)
}

func toPascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if strings.EqualFold(p, "id") {
			parts[i] = "ID"
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

func (tl *TestLogger) Write(p []byte) (n int, err error) {
	if tl.T != nil {
		tl.T.Logf("%s", p)
	}
	return len(p), nil
}

// TestFeatures runs the feature files under paths (default "features") and fails t on any failed scenario.
func TestFeatures(t *testing.T, suite *TestSuite, paths ...string) {
	suite.T = t
	if len(paths) == 0 {
		paths = []string{"features"}
	}
	opts := godog.Options{
		Format:    "pretty",
		Output:    colors.Colored(&TestLogger{T: t}),
		Paths:     paths,
		Strict:    true,
		Randomize: 0,
	}

	status := godog.TestSuite{
		Name:                 "postboard",
		TestSuiteInitializer: suite.InitializeTestSuite,
		ScenarioInitializer:  suite.InitializeScenario,
		Options:              &opts,
	}.Run()
	if status != 0 {
		t.Fatalf("feature scenarios failed with status %d", status)
	}
}
