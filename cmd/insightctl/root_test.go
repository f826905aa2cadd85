package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

const ordersCSV = "user_id,product_id,category,sub_category1,sub_category2,sub_category3,selling_price,discount_percentage,rating,rating_count\n" +
	"U1,P1,Electronics,Phones,Smart,Android,300,0.1,4.5,10\n" +
	"U1,P2,Electronics,Laptops,Ultra,Thin,900,0.2,4.0,20\n" +
	"U2,P3,Home,Kitchen,Cook,Pan,40,0.3,3.5,5\n"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeOrders(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(ordersCSV), 0o600))
	return path
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, "s3cret\n", "hash-password", "--cost", "4")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, 4, cost)
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := execute(t, "\n", "hash-password")
	assert.EqualError(t, err, "empty password")
}

func TestDashboards(t *testing.T) {
	out, err := execute(t, "", "dashboards")
	require.NoError(t, err)

	for _, slug := range []string{"orders", "customers", "sales", "satisfaction"} {
		assert.Contains(t, out, slug)
	}
}

func TestReport(t *testing.T) {
	path := writeOrders(t)
	t.Setenv("INSIGHT_CACHE", "none")

	out, err := execute(t, "", "report", "sales", "--csv-file", path, "--no-color", "--category", "Electronics")
	require.NoError(t, err)

	assert.Contains(t, out, "Product Sales Analysis and Performance Metrics")
	assert.Contains(t, out, "2 orders")
	assert.Contains(t, out, "[Electronics]")
	assert.Contains(t, out, "Top 5 Products by Sale Amount")
	assert.Contains(t, out, "P2")
}

func TestReport_Workbook(t *testing.T) {
	path := writeOrders(t)
	book := filepath.Join(t.TempDir(), "orders.xlsx")

	_, err := execute(t, "", "report", "orders", "--csv-file", path, "--cache", "none", "-o", book)
	require.NoError(t, err)

	f, err := excelize.OpenFile(book)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "KPIs", f.GetSheetList()[0])
}

func TestReport_UnknownDashboard(t *testing.T) {
	path := writeOrders(t)

	_, err := execute(t, "", "report", "nope", "--csv-file", path, "--cache", "none")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render nope")
}

func TestReport_RequiresDashboard(t *testing.T) {
	_, err := execute(t, "", "report")
	assert.Error(t, err)
}
