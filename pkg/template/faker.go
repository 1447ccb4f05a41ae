package template

import (
	"fmt"
	mathrand "math/rand"
	"strconv"

	"github.com/google/uuid"
)

var (
	fakerFirstNames = []string{"John", "Jane", "Bob", "Alice", "Charlie", "Diana", "Edward", "Fiona", "Grace", "Henry"}
	fakerLastNames  = []string{"Smith", "Doe", "Johnson", "Williams", "Brown", "Davis", "Miller", "Wilson", "Taylor", "Clark"}
	fakerDomains    = []string{"example.com", "test.com", "mock.io", "demo.org"}
	fakerCompanies  = []string{"Acme Corp", "Globex Inc", "Initech", "Umbrella Corp", "Stark Industries", "Wayne Enterprises"}
	fakerWords      = []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "theta", "lambda", "sigma", "omega"}
	fakerColors     = []string{"red", "green", "blue", "amber", "violet", "teal", "crimson", "indigo"}
	fakerStreets    = []string{"Main St", "Oak Ave", "Elm St", "Park Blvd", "Cedar Ln", "Maple Dr"}
	fakerCities     = []string{"New York", "Chicago", "Seattle", "Denver", "Austin", "Boston"}
	fakerJobLevels  = []string{"Junior", "Senior", "Lead", "Principal", "Staff"}
	fakerJobRoles   = []string{"Engineer", "Designer", "Analyst", "Manager", "Architect"}
	fakerSentences  = []string{
		"The quick brown fox jumps over the lazy dog.",
		"Lorem ipsum dolor sit amet.",
		"All systems operating normally.",
		"Request processed without incident.",
	}
)

func pick(list []string) string {
	return list[mathrand.Intn(len(list))]
}

// fakerValue returns generated sample data for a faker kind. The second
// return reports whether the kind exists.
func fakerValue(kind string) (any, bool) {
	switch kind {
	case "uuid":
		return uuid.New().String(), true
	case "boolean":
		return mathrand.Intn(2) == 1, true
	case "firstName":
		return pick(fakerFirstNames), true
	case "lastName":
		return pick(fakerLastNames), true
	case "name":
		return pick(fakerFirstNames) + " " + pick(fakerLastNames), true
	case "email":
		return fmt.Sprintf("%s%d@%s", pick(fakerWords), mathrand.Intn(1000), pick(fakerDomains)), true
	case "phone":
		return fmt.Sprintf("+1-%03d-%03d-%04d", mathrand.Intn(900)+100, mathrand.Intn(900)+100, mathrand.Intn(10000)), true
	case "company":
		return pick(fakerCompanies), true
	case "word":
		return pick(fakerWords), true
	case "sentence":
		return pick(fakerSentences), true
	case "color":
		return pick(fakerColors), true
	case "address":
		return fmt.Sprintf("%d %s, %s", mathrand.Intn(9999)+1, pick(fakerStreets), pick(fakerCities)), true
	case "jobTitle":
		return pick(fakerJobLevels) + " " + pick(fakerJobRoles), true
	case "price":
		cents := mathrand.Int63n(100000)
		return strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100), true
	case "ipv4":
		return fmt.Sprintf("%d.%d.%d.%d", mathrand.Intn(223)+1, mathrand.Intn(256), mathrand.Intn(256), mathrand.Intn(254)+1), true
	}
	return nil, false
}
