package xbar

import (
	"reflect"
	"testing"
)

func TestBuildAgeOrderDescending(t *testing.T) {
	ages := []int{0, 5, 3, 9}
	got := BuildAgeOrder(ages, 0)
	want := []int{3, 1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildAgeOrder() = %v, want %v", got, want)
	}
}

func TestBuildAgeOrderTiesBreakByRoundRobinStart(t *testing.T) {
	ages := []int{5, 5, 5, 5}
	got := BuildAgeOrder(ages, 2)
	want := []int{2, 3, 0, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildAgeOrder() = %v, want %v", got, want)
	}
}

func TestBuildAgeOrderSkipsZeroAge(t *testing.T) {
	ages := []int{0, 0, 7, 0}
	got := BuildAgeOrder(ages, 0)
	want := []int{2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildAgeOrder() = %v, want %v", got, want)
	}
}

func TestBuildAgeOrderAllZero(t *testing.T) {
	got := BuildAgeOrder([]int{0, 0, 0}, 1)
	if len(got) != 0 {
		t.Errorf("BuildAgeOrder() = %v, want empty", got)
	}
}

func TestBuildAgeOrderStartWraps(t *testing.T) {
	ages := []int{1, 2, 3}
	got := BuildAgeOrder(ages, -1)
	want := []int{2, 1, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildAgeOrder() = %v, want %v", got, want)
	}
}
