package mocks

import (
	context "context"

	mock "github.com/stretchr/testify/mock"
	models "github.com/wheelibin/yeetlight/internal/models"
)

// MockYeetlightGateway is a testify mock of the Gateway type
type MockYeetlightGateway struct {
	mock.Mock
}

// FetchConfig provides a mock function with given fields: ctx
func (_m *MockYeetlightGateway) FetchConfig(ctx context.Context) (models.BulbsConfig, error) {
	ret := _m.Called(ctx)

	var r0 models.BulbsConfig
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (models.BulbsConfig, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) models.BulbsConfig); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Get(0).(models.BulbsConfig)
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// FetchStatus provides a mock function with given fields: ctx, addr
func (_m *MockYeetlightGateway) FetchStatus(ctx context.Context, addr string) (models.Status, error) {
	ret := _m.Called(ctx, addr)

	var r0 models.Status
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (models.Status, error)); ok {
		return rf(ctx, addr)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) models.Status); ok {
		r0 = rf(ctx, addr)
	} else {
		r0 = ret.Get(0).(models.Status)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, addr)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// SetPower provides a mock function with given fields: ctx, addr, on
func (_m *MockYeetlightGateway) SetPower(ctx context.Context, addr string, on bool) error {
	ret := _m.Called(ctx, addr, on)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, bool) error); ok {
		r0 = rf(ctx, addr, on)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// SetBrightness provides a mock function with given fields: ctx, addr, pct
func (_m *MockYeetlightGateway) SetBrightness(ctx context.Context, addr string, pct int) error {
	ret := _m.Called(ctx, addr, pct)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, int) error); ok {
		r0 = rf(ctx, addr, pct)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// SetTemperature provides a mock function with given fields: ctx, addr, temperature
func (_m *MockYeetlightGateway) SetTemperature(ctx context.Context, addr string, temperature int) error {
	ret := _m.Called(ctx, addr, temperature)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, int) error); ok {
		r0 = rf(ctx, addr, temperature)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// SetColor provides a mock function with given fields: ctx, addr, color
func (_m *MockYeetlightGateway) SetColor(ctx context.Context, addr string, color models.Color) error {
	ret := _m.Called(ctx, addr, color)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, models.Color) error); ok {
		r0 = rf(ctx, addr, color)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockYeetlightGateway creates a new instance of MockYeetlightGateway. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockYeetlightGateway(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockYeetlightGateway {
	mock := &MockYeetlightGateway{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
