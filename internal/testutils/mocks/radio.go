package mocks

import (
	context "context"

	device "github.com/srg/btpick/internal/device"
	mock "github.com/stretchr/testify/mock"
)

// MockRadio is a mock type for device.Radio, written in the mockery layout
// so expectations may return values or functions of the call arguments.
type MockRadio struct {
	mock.Mock
}

// Open provides a mock function with given fields: ctx
func (_m *MockRadio) Open(ctx context.Context) error {
	ret := _m.Called(ctx)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Discover provides a mock function with given fields: ctx, handler
func (_m *MockRadio) Discover(ctx context.Context, handler device.DiscoverHandler) (int, error) {
	ret := _m.Called(ctx, handler)

	var r0 int
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, device.DiscoverHandler) (int, error)); ok {
		return rf(ctx, handler)
	}
	if rf, ok := ret.Get(0).(func(context.Context, device.DiscoverHandler) int); ok {
		r0 = rf(ctx, handler)
	} else {
		r0 = ret.Get(0).(int)
	}

	if rf, ok := ret.Get(1).(func(context.Context, device.DiscoverHandler) error); ok {
		r1 = rf(ctx, handler)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Connect provides a mock function with given fields: ctx, addr
func (_m *MockRadio) Connect(ctx context.Context, addr device.Address) error {
	ret := _m.Called(ctx, addr)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, device.Address) error); ok {
		r0 = rf(ctx, addr)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Disconnect provides a mock function with given fields: ctx, addr
func (_m *MockRadio) Disconnect(ctx context.Context, addr device.Address) error {
	ret := _m.Called(ctx, addr)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, device.Address) error); ok {
		r0 = rf(ctx, addr)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Close provides a mock function with given fields:
func (_m *MockRadio) Close() error {
	ret := _m.Called()

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockRadio creates a new instance of MockRadio. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockRadio(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRadio {
	mock := &MockRadio{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
