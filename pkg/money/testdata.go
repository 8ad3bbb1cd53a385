package money

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// TestDataGenerator produces realistic club-treasury fixtures with gofakeit:
// trip income, gear and transport expenses, and flattened statement lines
// for parser tests.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0),
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a fixed seed for
// reproducible fixtures.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

// TestTransaction is one generated ledger entry.
type TestTransaction struct {
	ID          uuid.UUID
	Date        time.Time
	Description string
	Amount      *Money
	Category    string
	Event       string
	IsExpense   bool
}

var expenseCategories = []string{
	"Transport", "Accommodation", "Equipment", "Training",
	"Social", "Insurance", "Affiliation Fees",
}

var incomeCategories = []string{
	"Membership", "Trip Fees", "Fundraising", "Grants", "Sponsorship",
}

var events = []string{
	"Welsh 3000s", "Snowdonia", "Cadair Idris", "Lake District",
	"Peak District", "Scotland Winter", "General",
}

var expenseDescriptions = []string{
	"Minibus Hire",
	"Minibus fuel",
	"Bunkhouse deposit",
	"Bunkhouse balance",
	"Campsite fees",
	"Group shelter purchase",
	"Rope replacement",
	"Map and compass set",
	"First aid restock",
	"BMC affiliation",
	"Leader training course",
	"Hall hire for socials",
	"Pizza for AGM",
}

var incomeDescriptions = []string{
	"Membership payment",
	"Welsh 3000s Registration",
	"Trip fee transfer",
	"Bag pack fundraising",
	"Union grant instalment",
	"Gear sale proceeds",
	"Charity hike sponsorship",
}

// ClubTransaction generates a single plausible ledger entry.
func (g *TestDataGenerator) ClubTransaction() TestTransaction {
	if g.faker.Bool() {
		return g.ExpenseTransaction()
	}
	return g.IncomeTransaction()
}

// ClubTransactions generates count ledger entries.
func (g *TestDataGenerator) ClubTransactions(count int) []TestTransaction {
	txs := make([]TestTransaction, count)
	for i := range txs {
		txs[i] = g.ClubTransaction()
	}
	return txs
}

// ExpenseTransaction generates a club outgoing: transport, huts, gear.
func (g *TestDataGenerator) ExpenseTransaction() TestTransaction {
	return TestTransaction{
		ID:          uuid.New(),
		Date:        g.faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()),
		Description: pick(g, expenseDescriptions),
		Amount:      g.RandomAmount(5, 600),
		Category:    pick(g, expenseCategories),
		Event:       pick(g, events),
		IsExpense:   true,
	}
}

// IncomeTransaction generates club income: memberships, trip fees, grants.
func (g *TestDataGenerator) IncomeTransaction() TestTransaction {
	return TestTransaction{
		ID:          uuid.New(),
		Date:        g.faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()),
		Description: pick(g, incomeDescriptions),
		Amount:      g.RandomAmount(5, 2000),
		Category:    pick(g, incomeCategories),
		Event:       pick(g, events),
		IsExpense:   false,
	}
}

// RandomAmount generates GBP Money between minPounds and maxPounds with
// random pence.
func (g *TestDataGenerator) RandomAmount(minPounds, maxPounds int) *Money {
	if minPounds > maxPounds {
		minPounds, maxPounds = maxPounds, minPounds
	}
	pounds := int64(g.faker.Number(minPounds, maxPounds))
	pence := int64(g.faker.Number(0, 99))
	return New(pounds*100+pence, GBP)
}

// StatementLine renders a transaction the way a flattened statement text
// layer would: date, description, amount, optional running balance.
func (g *TestDataGenerator) StatementLine(tx TestTransaction, balance *Money) string {
	line := fmt.Sprintf("%s %s %s",
		tx.Date.Format("02/01/2006"),
		tx.Description,
		tx.Amount.ToDecimal().StringFixed(2),
	)
	if balance != nil {
		line += " " + balance.ToDecimal().StringFixed(2)
	}
	return line
}

// StatementLines renders a whole page of flattened statement lines with a
// running balance, newest first like a real statement.
func (g *TestDataGenerator) StatementLines(txs []TestTransaction, opening *Money) []string {
	lines := make([]string, 0, len(txs))
	balance := opening
	for _, tx := range txs {
		var err error
		if tx.IsExpense {
			balance, err = balance.Subtract(tx.Amount)
		} else {
			balance, err = balance.Add(tx.Amount)
		}
		if err != nil {
			balance = Zero(GBP)
		}
		lines = append(lines, g.StatementLine(tx, balance))
	}
	return lines
}

// Category returns a random expense category.
func (g *TestDataGenerator) Category() string {
	return pick(g, expenseCategories)
}

// IncomeCategory returns a random income category.
func (g *TestDataGenerator) IncomeCategory() string {
	return pick(g, incomeCategories)
}

// Event returns a random event label.
func (g *TestDataGenerator) Event() string {
	return pick(g, events)
}

// MonthOfActivity generates a plausible month of club activity: a burst of
// trip fees before each weekend, expenses after.
func (g *TestDataGenerator) MonthOfActivity() []TestTransaction {
	var txs []TestTransaction
	weekends := g.faker.Number(2, 4)
	for i := 0; i < weekends; i++ {
		fees := g.faker.Number(4, 12)
		for j := 0; j < fees; j++ {
			txs = append(txs, g.IncomeTransaction())
		}
		costs := g.faker.Number(2, 5)
		for j := 0; j < costs; j++ {
			txs = append(txs, g.ExpenseTransaction())
		}
	}

	for i := len(txs) - 1; i > 0; i-- {
		j := g.faker.Number(0, i)
		txs[i], txs[j] = txs[j], txs[i]
	}
	return txs
}

func pick(g *TestDataGenerator, options []string) string {
	return options[g.faker.Number(0, len(options)-1)]
}
