package tycon

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/broady/tycon/internal/literal"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	CodeInvalidArgument ErrorCode = "invalid_argument"
	CodeInternal        ErrorCode = "internal"

	// Type resolution
	CodeInvalidDecl         ErrorCode = "invalid_decl"
	CodeInvalidDefinition   ErrorCode = "invalid_definition"
	CodeAmbiguousDefinition ErrorCode = "ambiguous_definition"
	CodeKeywordInUnion      ErrorCode = "keyword_in_union"
	CodeWrongSource         ErrorCode = "wrong_source"
	CodeStandaloneIterable  ErrorCode = "standalone_iterable"

	// Override compatibility
	CodeIncomparable         ErrorCode = "incomparable"
	CodeIncompatibleReturn   ErrorCode = "incompatible_return"
	CodeIncompatibleNullable ErrorCode = "incompatible_nullability"
	CodeIncompatibleWrapping ErrorCode = "incompatible_wrapping"
	CodeIncompatibleArity    ErrorCode = "incompatible_arity"
	CodeIncompatibleDefault  ErrorCode = "incompatible_default"
	CodeIncompatibleVariadic ErrorCode = "incompatible_variadic"
	CodeIncompatibleParam    ErrorCode = "incompatible_param"

	// Metadata structure
	CodeDuplicateContract    ErrorCode = "duplicate_contract"
	CodeNotInterface         ErrorCode = "not_interface"
	CodeConstantOverride     ErrorCode = "constant_override"
	CodeContractConflict     ErrorCode = "contract_conflict"
	CodeMissingAbstract      ErrorCode = "missing_abstract"
	CodeInterfaceField       ErrorCode = "interface_field"
	CodeInterfaceNativeState ErrorCode = "interface_native_state"
	CodeNativeConstructor    ErrorCode = "native_constructor"
	CodeCyclicDefinition     ErrorCode = "cyclic_definition"
	CodeInvalidDefault       ErrorCode = "invalid_default"
	CodeDuplicateMember      ErrorCode = "duplicate_member"
	CodeUnregistered         ErrorCode = "unregistered"

	// Augmentation
	CodeAbstractCollision ErrorCode = "abstract_collision"
	CodeMagicNativeState  ErrorCode = "magic_native_state"

	// Runtime contract
	CodeAbstractCall       ErrorCode = "abstract_call"
	CodeNotInstantiable    ErrorCode = "not_instantiable"
	CodeInvalidValue       ErrorCode = "invalid_value"
	CodeAccessDenied       ErrorCode = "access_denied"
	CodeUndefinedMember    ErrorCode = "undefined_member"
	CodeConstantAssignment ErrorCode = "constant_assignment"
)

// ErrorClass groups error codes by the stage that raises them.
type ErrorClass string

const (
	ClassInvalidArgument ErrorClass = "invalid_argument"
	ClassResolution      ErrorClass = "resolution"
	ClassCompatibility   ErrorClass = "compatibility"
	ClassStructure       ErrorClass = "structure"
	ClassAugmentation    ErrorClass = "augmentation"
	ClassRuntime         ErrorClass = "runtime"
	ClassInternal        ErrorClass = "internal"
)

// Class maps an ErrorCode to its violation class.
func (c ErrorCode) Class() ErrorClass {
	switch c {
	case CodeInvalidArgument:
		return ClassInvalidArgument
	case CodeInvalidDecl, CodeInvalidDefinition, CodeAmbiguousDefinition,
		CodeKeywordInUnion, CodeWrongSource, CodeStandaloneIterable:
		return ClassResolution
	case CodeIncomparable, CodeIncompatibleReturn, CodeIncompatibleNullable,
		CodeIncompatibleWrapping, CodeIncompatibleArity, CodeIncompatibleDefault,
		CodeIncompatibleVariadic, CodeIncompatibleParam:
		return ClassCompatibility
	case CodeDuplicateContract, CodeNotInterface, CodeConstantOverride,
		CodeContractConflict, CodeMissingAbstract, CodeInterfaceField,
		CodeInterfaceNativeState, CodeNativeConstructor, CodeCyclicDefinition,
		CodeInvalidDefault, CodeDuplicateMember, CodeUnregistered:
		return ClassStructure
	case CodeAbstractCollision, CodeMagicNativeState:
		return ClassAugmentation
	case CodeAbstractCall, CodeNotInstantiable, CodeInvalidValue, CodeAccessDenied,
		CodeUndefinedMember, CodeConstantAssignment:
		return ClassRuntime
	default:
		return ClassInternal
	}
}

// Error is the structured error returned by every tycon operation.
// Details carries the fields needed to render a diagnostic without
// re-deriving registry state.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// NewError creates a new error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// WithDetails returns a new Error with the provided map merged into details.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: merged,
	}
}

// CodeOf returns the code of err if it is (or wraps) an *Error, and "" otherwise.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// AsError maps an arbitrary error to an *Error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	if u, ok := err.(interface{ Unwrap() []error }); ok {
		errs := u.Unwrap()
		if len(errs) > 0 {
			firstMapped := AsError(errs[0])
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return &Error{
				Code:    firstMapped.Code,
				Message: strings.Join(msgs, "; "),
				Details: firstMapped.Details,
			}
		}
	}

	var tcErr *Error
	if errors.As(err, &tcErr) {
		return tcErr
	}

	var evalErr *literal.EvalError
	if errors.As(err, &evalErr) {
		return Errorf(CodeInvalidDefault, "invalid default %q: %s", evalErr.Source, evalErr.Reason).
			WithDetail("source", evalErr.Source)
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		details := make(map[string]any)
		messages := make([]string, 0, len(valErrs))
		for _, ve := range valErrs {
			msg := formatValidationError(ve)
			details[ve.Namespace()] = msg
			messages = append(messages, ve.Namespace()+": "+msg)
		}
		return &Error{
			Code:    CodeInvalidArgument,
			Message: strings.Join(messages, "; "),
			Details: details,
		}
	}

	return NewError(CodeInternal, err.Error())
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	case "excludesall":
		return fmt.Sprintf("must not contain any of %q", ve.Param())
	case "ident":
		return "must be a valid member name"
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
