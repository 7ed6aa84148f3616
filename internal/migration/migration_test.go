package migration

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	accessdomain "github.com/smallbiznis/pixbot/internal/access/domain"
	paymentdomain "github.com/smallbiznis/pixbot/internal/payment/domain"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	saledomain "github.com/smallbiznis/pixbot/internal/sale/domain"
)

var models = []any{
	&productdomain.Product{},
	&saledomain.Sale{},
	&accessdomain.Grant{},
	&paymentdomain.EventRecord{},
}

// MySQL cannot index a TEXT column without a key length and rejects a
// default value on one, so AutoMigrate needs bounded string types there.
func TestModelsAvoidIndexedOrDefaultedText(t *testing.T) {
	for _, model := range models {
		sch, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
		require.NoError(t, err)

		for _, idx := range sch.ParseIndexes() {
			for _, opt := range idx.Fields {
				assert.NotEqual(t, "text", strings.ToLower(string(opt.Field.DataType)),
					"%s.%s is indexed by %s", sch.Table, opt.Field.DBName, idx.Name)
			}
		}
		for _, field := range sch.Fields {
			if field.DefaultValue == "" || field.FieldType.Kind() != reflect.String {
				continue
			}
			assert.NotEqual(t, "text", strings.ToLower(string(field.DataType)),
				"%s.%s has a default value", sch.Table, field.DBName)
		}
	}
}

func TestAutoMigrate(t *testing.T) {
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, AutoMigrate(db))
	for _, table := range []string{"products", "sales", "access_grants", "payment_events"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex(&paymentdomain.EventRecord{}, "ux_payment_events_provider_payment"))
	assert.True(t, db.Migrator().HasIndex(&saledomain.Sale{}, "ux_sales_payment_id"))
}
