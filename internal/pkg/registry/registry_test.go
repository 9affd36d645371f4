package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeModule struct {
	name     string
	priority int
	order    *[]string
}

func (m *fakeModule) Name() string  { return m.name }
func (m *fakeModule) Priority() int { return m.priority }
func (m *fakeModule) Init(ctx *ModuleContext) error {
	*m.order = append(*m.order, m.name)
	return nil
}

func TestInitModules_PriorityOrder(t *testing.T) {
	saved := moduleRegistry
	moduleRegistry = make(map[string]Module)
	defer func() { moduleRegistry = saved }()

	var order []string
	Register(&fakeModule{name: "common", priority: 100, order: &order})
	Register(&fakeModule{name: "post", priority: 10, order: &order})
	Register(&fakeModule{name: "user", priority: 1, order: &order})
	Register(&fakeModule{name: "engagement", priority: 20, order: &order})

	assert.NoError(t, InitModules(&ModuleContext{}))
	assert.Equal(t, []string{"user", "post", "engagement", "common"}, order)
}

func TestShutdown_ReverseOrder(t *testing.T) {
	ctx := &ModuleContext{}
	var order []int
	ctx.OnShutdown(func() { order = append(order, 1) })
	ctx.OnShutdown(func() { order = append(order, 2) })

	ctx.Shutdown()
	ctx.Shutdown()
	assert.Equal(t, []int{2, 1}, order)
}
