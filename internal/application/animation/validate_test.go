package animation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func categories(r *ValidationResult) []ValidationCategory {
	cats := make([]ValidationCategory, 0, len(r.Errors))
	for _, e := range r.Errors {
		cats = append(cats, e.Category)
	}
	return cats
}

func TestValidateWellFormedScene(t *testing.T) {
	r := Validate(validScene)
	assert.True(t, r.IsValid)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
}

func TestValidateEmptyInput(t *testing.T) {
	for _, code := range []string{"", "   \n\t  "} {
		r := Validate(code)
		require.False(t, r.IsValid)
		require.Len(t, r.Errors, 1)
		assert.Equal(t, CategoryEmptyInput, r.Errors[0].Category)
	}
}

func TestValidateMissingImport(t *testing.T) {
	code := "class Demo(Scene):\n    def construct(self):\n        self.play(Create(Circle()))\n        self.wait(1)\n"
	r := Validate(code)
	assert.False(t, r.IsValid)
	assert.Contains(t, categories(r), CategoryMissingImport)
}

func TestValidateImportVariants(t *testing.T) {
	for _, imp := range []string{"from manim import *", "import manim", "from manim.animation import Create"} {
		code := imp + "\n\nclass Demo(Scene):\n    def construct(self):\n        self.play(Create(Circle()))\n        self.wait(1)\n"
		r := Validate(code)
		assert.NotContains(t, categories(r), CategoryMissingImport, "import %q", imp)
	}
}

func TestValidateMissingEntryPoint(t *testing.T) {
	code := "from manim import *\n\ndef main():\n    pass\n"
	r := Validate(code)
	assert.Contains(t, categories(r), CategoryMissingEntryPoint)
}

func TestValidateNonSceneBaseIsNotEntryPoint(t *testing.T) {
	code := "from manim import *\n\nclass Helper(object):\n    pass\n"
	r := Validate(code)
	assert.Contains(t, categories(r), CategoryMissingEntryPoint)
}

func TestValidateMissingConstruct(t *testing.T) {
	code := "from manim import *\n\nclass Demo(Scene):\n    def setup(self):\n        pass\n"
	r := Validate(code)
	assert.Contains(t, categories(r), CategoryMissingLifecycleMethod)
	assert.NotContains(t, categories(r), CategoryMissingEntryPoint)
}

func TestValidateTopLevelConstructDoesNotCount(t *testing.T) {
	code := "from manim import *\n\nclass Demo(Scene):\n    pass\n\ndef construct(self):\n    pass\n"
	r := Validate(code)
	assert.Contains(t, categories(r), CategoryMissingLifecycleMethod)
}

func TestValidateBlockingCalls(t *testing.T) {
	for _, call := range []string{"input('continue?')", "breakpoint()", "self.embed()", "plt.show()", "os.system('ls')"} {
		code := "from manim import *\n\nclass Demo(Scene):\n    def construct(self):\n        self.play(Create(Circle()))\n        " + call + "\n        self.wait(1)\n"
		r := Validate(code)
		assert.Contains(t, categories(r), CategoryBlockingCallDetected, "call %q", call)
	}
}

func TestValidateBlockingCallInCommentIgnored(t *testing.T) {
	code := "from manim import *\n\nclass Demo(Scene):\n    def construct(self):\n        # input() 在这里只是注释\n        self.play(Create(Circle()))\n        self.wait(1)\n"
	r := Validate(code)
	assert.True(t, r.IsValid)
}

func TestValidateInputPrefixedIdentifierIgnored(t *testing.T) {
	code := "from manim import *\n\nclass Demo(Scene):\n    def construct(self):\n        data = get_input('x')\n        self.play(Create(Circle()))\n        self.wait(1)\n"
	r := Validate(code)
	assert.NotContains(t, categories(r), CategoryBlockingCallDetected)
}

func TestValidateUnbalancedDelimiters(t *testing.T) {
	code := "from manim import *\n\nclass Demo(Scene):\n    def construct(self):\n        self.play(Create(Circle())\n        self.wait(1)\n"
	r := Validate(code)
	assert.Contains(t, categories(r), CategorySyntaxError)
}

func TestValidateUnterminatedString(t *testing.T) {
	code := "from manim import *\n\nclass Demo(Scene):\n    def construct(self):\n        label = Text('unfinished\n        self.wait(1)\n"
	r := Validate(code)
	assert.Contains(t, categories(r), CategorySyntaxError)
}

func TestValidateTripleQuotedStringsAllowed(t *testing.T) {
	code := "from manim import *\n\nclass Demo(Scene):\n    \"\"\"带 # 和 ( 的文档字符串\n    跨越多行\n    \"\"\"\n    def construct(self):\n        self.play(Create(Circle()))\n        self.wait(1)\n"
	r := Validate(code)
	assert.True(t, r.IsValid, "errors: %v", r.ErrorMessages())
}

func TestValidateMultipleErrorsAccumulate(t *testing.T) {
	r := Validate("print('hi')\n")
	require.False(t, r.IsValid)
	cats := categories(r)
	assert.Contains(t, cats, CategoryMissingImport)
	assert.Contains(t, cats, CategoryMissingEntryPoint)
}

func TestValidateWarningsDoNotFail(t *testing.T) {
	code := "from manim import *\n\nclass Demo(Scene):\n    def construct(self):\n        circle = Circle()\n        self.add(circle)\n"
	r := Validate(code)
	assert.True(t, r.IsValid)
	require.Len(t, r.Warnings, 2)
	assert.True(t, strings.Contains(r.Warnings[0], "self.play"))
	assert.True(t, strings.Contains(r.Warnings[1], "self.wait"))
}

func TestValidateErrorMessagesIncludeCategory(t *testing.T) {
	r := Validate("print('hi')\n")
	for _, msg := range r.ErrorMessages() {
		assert.Contains(t, msg, ": ")
	}
}
